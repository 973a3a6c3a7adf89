package calc

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender(t *testing.T) {
	var v Variables
	assert.Equal(t, "", Render(&v))

	require.NoError(t, Interpret(&v, "a = 5"))
	assert.Equal(t, "a = 5.000000\n", Render(&v))

	require.NoError(t, Interpret(&v, "b = a + 3"))
	assert.Equal(t, "a = 5.000000\nb = 8.000000\n", Render(&v))

	require.NoError(t, Interpret(&v, "e = 2000 * 2"))
	assert.Contains(t, Render(&v), "e = 4.00000000e+03\n")
}

func TestRender_LetterOrderIndependentOfInsertion(t *testing.T) {
	var v Variables
	for _, line := range []string{"z = 1", "m = 2", "a = 3"} {
		require.NoError(t, Interpret(&v, line))
	}
	assert.Equal(t, "a = 3.000000\nm = 2.000000\nz = 1.000000\n", Render(&v))
}

func TestRender_Idempotent(t *testing.T) {
	var v Variables
	require.NoError(t, Interpret(&v, "q = 12.5"))
	assert.Equal(t, Render(&v), Render(&v))
}

func TestFormatValue(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "0.000000"},
		{999.9999994, "999.999999"},
		{1000, "1.00000000e+03"},
		{-1000, "-1.00000000e+03"},
		{-999, "-999.000000"},
		{123456789, "1.23456789e+08"},
		{0.000001, "0.000001"},
		{1e-9, "0.000000"},
		{math.Inf(1), "inf"},
		{math.Inf(-1), "-inf"},
		{math.NaN(), "nan"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatValue(tt.in), "%v", tt.in)
	}
}

func TestCodec_RoundTrip(t *testing.T) {
	var v Variables
	for _, line := range []string{"a = 1.5", "c = -7", "y = 2000 * 2000", "z = 0"} {
		require.NoError(t, Interpret(&v, line))
	}

	data := Encode(&v)
	require.Len(t, data, RecordSize)

	got, err := Decode(data)
	require.NoError(t, err)
	if diff := cmp.Diff(v, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestCodec_RoundTripNonFinite(t *testing.T) {
	var v Variables
	require.NoError(t, Interpret(&v, "a = 1 / 0"))
	require.NoError(t, Interpret(&v, "b = 0 / 0"))

	got, err := Decode(Encode(&v))
	require.NoError(t, err)
	assert.Equal(t, Encode(&v), Encode(&got))
	assert.True(t, math.IsNaN(got.Values[1]))
}

func TestCodec_Layout(t *testing.T) {
	var v Variables
	v.Set('b', 2)

	data := Encode(&v)
	assert.Equal(t, byte(0), data[0])
	assert.Equal(t, byte(1), data[1])
	assert.Equal(t, make([]byte, valuesOff-flagsSize), data[flagsSize:valuesOff])
	// 2.0 == 0x4000000000000000, little-endian
	assert.Equal(t, []byte{0, 0, 0, 0, 0, 0, 0, 0x40}, data[valuesOff+8:valuesOff+16])
}

func TestDecode_RejectsWrongSize(t *testing.T) {
	_, err := Decode(make([]byte, RecordSize-1))
	require.ErrorIs(t, err, ErrBadRecord)

	_, err = Decode(nil)
	require.ErrorIs(t, err, ErrBadRecord)
}
