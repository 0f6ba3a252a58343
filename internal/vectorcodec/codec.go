// Package vectorcodec serializes float32 embedding vectors to the
// little-endian binary form persisted in the embedding BLOB columns, and
// provides the distance/metric functions the vector index scans with.
package vectorcodec

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// ErrDimensionMismatch is returned whenever two vectors being compared or
// combined do not share the same length.
var ErrDimensionMismatch = errors.New("vectorcodec: dimension mismatch")

// Serialize encodes v as tightly-packed little-endian IEEE-754 float32,
// producing a byte slice of length 4*len(v).
func Serialize(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// Deserialize decodes a byte slice produced by Serialize back into a
// float32 slice. It fails if the length is not a multiple of 4.
func Deserialize(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("vectorcodec: byte length %d is not a multiple of 4", len(b))
	}
	n := len(b) / 4
	v := make([]float32, n)
	for i := 0; i < n; i++ {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v, nil
}

// ValidateDimensions returns ErrDimensionMismatch if v does not have
// exactly dims elements. A zero-or-negative dims disables the check.
func ValidateDimensions(v []float32, dims int) error {
	if dims <= 0 {
		return nil
	}
	if len(v) != dims {
		return fmt.Errorf("%w: expected %d, got %d", ErrDimensionMismatch, dims, len(v))
	}
	return nil
}

// IsValid reports whether every element of v is finite (no NaN, no ±Inf).
func IsValid(v []float32) bool {
	for _, f := range v {
		f64 := float64(f)
		if math.IsNaN(f64) || math.IsInf(f64, 0) {
			return false
		}
	}
	return true
}
