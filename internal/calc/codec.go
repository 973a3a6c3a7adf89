package calc

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// Record layout, identical to a C `struct { bool used[26]; double values[26]; }`
// on a 64-bit little-endian host: flags, alignment padding, values.
const (
	flagsSize  = NumVariables
	valuesOff  = 32
	RecordSize = valuesOff + NumVariables*8
)

// ErrBadRecord is returned by Decode for input that is not a session record.
var ErrBadRecord = errors.New("malformed session record")

// Encode returns the fixed-size on-disk image of v.
func Encode(v *Variables) []byte {
	buf := make([]byte, RecordSize)
	for i, used := range v.Used {
		if used {
			buf[i] = 1
		}
	}
	for i, value := range v.Values {
		binary.LittleEndian.PutUint64(buf[valuesOff+i*8:], math.Float64bits(value))
	}
	return buf
}

// Decode parses a 240-byte session record as written by Encode.
// Any non-zero flag byte counts as used.
func Decode(data []byte) (Variables, error) {
	var v Variables
	if len(data) != RecordSize {
		return v, fmt.Errorf("%w: got %d bytes, want %d", ErrBadRecord, len(data), RecordSize)
	}
	for i := 0; i < flagsSize; i++ {
		v.Used[i] = data[i] != 0
	}
	for i := range v.Values {
		v.Values[i] = math.Float64frombits(binary.LittleEndian.Uint64(data[valuesOff+i*8:]))
	}
	return v, nil
}
