package vectorindex

import "encoding/base64"

// ContentSealer mirrors storage.ContentSealer so the index can open
// sealed content read straight off the content column during a scan,
// without importing the storage package. A nil sealer, or one whose
// Enabled reports false, leaves content untouched.
type ContentSealer interface {
	Enabled() bool
	Seal(plaintext []byte) ([]byte, error)
	Open(data []byte) ([]byte, error)
}

// openContent reverses storage's sealContent: base64-decode then open. A
// disabled or nil sealer returns stored unchanged.
func openContent(sealer ContentSealer, stored string) (string, error) {
	if sealer == nil || !sealer.Enabled() {
		return stored, nil
	}
	raw, err := base64.StdEncoding.DecodeString(stored)
	if err != nil {
		return "", err
	}
	opened, err := sealer.Open(raw)
	if err != nil {
		return "", err
	}
	return string(opened), nil
}
