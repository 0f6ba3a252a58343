package storage

import "encoding/base64"

// ContentSealer optionally seals/opens row content for at-rest
// encryption. A nil sealer, or one whose Enabled reports false, leaves
// content untouched; stores treat it as pass-through.
type ContentSealer interface {
	Enabled() bool
	Seal(plaintext []byte) ([]byte, error)
	Open(data []byte) ([]byte, error)
}

// sealContent seals content for storage, base64-encoding the result so
// it survives the TEXT column's affinity. A disabled or nil sealer
// returns content unchanged.
func sealContent(sealer ContentSealer, content string) (string, error) {
	if sealer == nil || !sealer.Enabled() {
		return content, nil
	}
	sealed, err := sealer.Seal([]byte(content))
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// openContent reverses sealContent. A disabled or nil sealer returns
// stored unchanged.
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
