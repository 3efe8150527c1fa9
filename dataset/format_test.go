package dataset

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/pimeans/blobstore"
	"github.com/hupe1980/pimeans/numeric"
)

func TestEncodeDecodeCodecs(t *testing.T) {
	points := Uniform(200, 3, 11)

	for _, codec := range []Codec{CodecNone, CodecZstd, CodecLZ4} {
		t.Run(codec.String(), func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, Encode(&buf, points, 3, codec))

			got, dim, err := Decode[float64](&buf)
			require.NoError(t, err)
			assert.Equal(t, 3, dim)
			assert.Equal(t, points, got)
		})
	}
}

func TestEncodeDecodeInt16(t *testing.T) {
	points := numeric.Quantize(Uniform(64, 4, 5))

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, points, 4, CodecZstd))

	got, dim, err := Decode[int16](&buf)
	require.NoError(t, err)
	assert.Equal(t, 4, dim)
	assert.Equal(t, points, got)
}

func TestDecodeWidthMismatch(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, []float64{1, 2, 3, 4}, 2, CodecNone))

	_, _, err := Decode[int16](&buf)
	assert.ErrorIs(t, err, ErrWidthMismatch)
}

func TestDecodeRejectsBadMagic(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, []float64{1, 2}, 2, CodecNone))

	raw := buf.Bytes()
	raw[0] ^= 0xFF

	_, _, err := Decode[float64](bytes.NewReader(raw))
	assert.ErrorIs(t, err, ErrInvalidMagic)
}

func TestDecodeDetectsCorruption(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, Uniform(32, 2, 3), 2, CodecNone))

	raw := buf.Bytes()
	raw[len(raw)-8] ^= 0x01 // flip a payload byte

	_, _, err := Decode[float64](bytes.NewReader(raw))
	assert.ErrorIs(t, err, ErrChecksum)
}

func TestDecodeTruncated(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, Uniform(32, 2, 3), 2, CodecNone))

	raw := buf.Bytes()
	_, _, err := Decode[float64](bytes.NewReader(raw[:len(raw)/2]))
	assert.ErrorIs(t, err, ErrTruncated)
}

func TestEncodeRejectsBadShape(t *testing.T) {
	var buf bytes.Buffer
	err := Encode(&buf, []float64{1, 2, 3}, 2, CodecNone)
	assert.Error(t, err)
}

func TestParseCodec(t *testing.T) {
	for name, want := range map[string]Codec{
		"none": CodecNone,
		"":     CodecNone,
		"zstd": CodecZstd,
		"lz4":  CodecLZ4,
	} {
		got, err := ParseCodec(name)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := ParseCodec("gzip")
	assert.ErrorIs(t, err, ErrInvalidCodec)
}

func TestSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "points.pimd")
	points := Uniform(100, 8, 9)

	require.NoError(t, Save(path, points, 8, CodecLZ4))

	got, dim, err := Load[float64](path)
	require.NoError(t, err)
	assert.Equal(t, 8, dim)
	assert.Equal(t, points, got)
}

func TestUploadFetch(t *testing.T) {
	store, err := blobstore.NewLocalStore(t.TempDir())
	require.NoError(t, err)

	ctx := context.Background()
	points := Uniform(50, 2, 13)

	require.NoError(t, Upload(ctx, store, "sets/points.pimd", points, 2, CodecZstd))

	got, dim, err := Fetch[float64](ctx, store, "sets/points.pimd")
	require.NoError(t, err)
	assert.Equal(t, 2, dim)
	assert.Equal(t, points, got)

	_, _, err = Fetch[float64](ctx, store, "missing.pimd")
	assert.ErrorIs(t, err, blobstore.ErrNotFound)
}
