package dataset

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/hupe1980/pimeans/internal/wire"
	"github.com/hupe1980/pimeans/numeric"
)

const (
	// MagicNumber identifies point dataset files (ASCII: "PIMD").
	MagicNumber = 0x50494D44
	// FormatVersion is the current file format version (v1.0.0).
	FormatVersion = 0x00010000
)

// Codec selects the payload compression applied on encode.
type Codec uint8

const (
	CodecNone Codec = 0
	CodecZstd Codec = 1
	CodecLZ4  Codec = 2
)

func (c Codec) String() string {
	switch c {
	case CodecNone:
		return "none"
	case CodecZstd:
		return "zstd"
	case CodecLZ4:
		return "lz4"
	default:
		return fmt.Sprintf("codec(%d)", uint8(c))
	}
}

// ParseCodec maps a codec name to its Codec value.
func ParseCodec(name string) (Codec, error) {
	switch name {
	case "none", "":
		return CodecNone, nil
	case "zstd":
		return CodecZstd, nil
	case "lz4":
		return CodecLZ4, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidCodec, name)
	}
}

var (
	ErrInvalidMagic   = errors.New("invalid magic number")
	ErrInvalidVersion = errors.New("unsupported version")
	ErrInvalidCodec   = errors.New("unknown payload codec")
	ErrWidthMismatch  = errors.New("feature width mismatch")
	ErrChecksum       = errors.New("checksum mismatch")
	ErrTruncated      = errors.New("truncated dataset")
)

// fileHeader is the fixed 40-byte header at the start of every dataset
// file. The trailing CRC32 (IEEE) covers the header and the payload.
type fileHeader struct {
	Magic      uint32
	Version    uint32
	Codec      uint8
	Width      uint8 // bytes per feature value
	Padding    [2]byte
	Count      uint32 // points
	Dim        uint32 // features per point
	PayloadLen uint64 // compressed payload size in bytes
	Reserved   [12]byte
}

// Encode writes points as a dataset stream: header, codec-compressed
// little-endian payload, trailing CRC32 over everything before it.
func Encode[F numeric.Feature](w io.Writer, points []F, dim int, codec Codec) error {
	if dim < 1 || len(points)%dim != 0 {
		return fmt.Errorf("points length %d is not a multiple of dim %d", len(points), dim)
	}
	count := len(points) / dim

	payload, err := compress(codec, wire.Bytes(points))
	if err != nil {
		return err
	}

	hdr := fileHeader{
		Magic:      MagicNumber,
		Version:    FormatVersion,
		Codec:      uint8(codec),
		Width:      uint8(wire.Size[F]()),
		PayloadLen: uint64(len(payload)),
	}
	hdr.Count, err = wire.IntToUint32(count)
	if err != nil {
		return err
	}
	hdr.Dim, err = wire.IntToUint32(dim)
	if err != nil {
		return err
	}

	crc := crc32.New(crc32.MakeTable(crc32.IEEE))
	out := io.MultiWriter(w, crc)

	if err := binary.Write(out, binary.LittleEndian, &hdr); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if _, err := out.Write(payload); err != nil {
		return fmt.Errorf("write payload: %w", err)
	}
	if err := binary.Write(w, binary.LittleEndian, crc.Sum32()); err != nil {
		return fmt.Errorf("write checksum: %w", err)
	}
	return nil
}

// Decode reads a dataset stream produced by Encode and returns the
// points together with their dimensionality. The feature type must
// match the width the file was written with.
func Decode[F numeric.Feature](r io.Reader) ([]F, int, error) {
	crc := crc32.New(crc32.MakeTable(crc32.IEEE))
	in := io.TeeReader(r, crc)

	var hdr fileHeader
	if err := binary.Read(in, binary.LittleEndian, &hdr); err != nil {
		return nil, 0, fmt.Errorf("read header: %w", err)
	}
	if hdr.Magic != MagicNumber {
		return nil, 0, ErrInvalidMagic
	}
	if hdr.Version != FormatVersion {
		return nil, 0, fmt.Errorf("%w: 0x%08x", ErrInvalidVersion, hdr.Version)
	}
	if want := wire.Size[F](); int(hdr.Width) != want {
		return nil, 0, fmt.Errorf("%w: file has %d-byte features, want %d", ErrWidthMismatch, hdr.Width, want)
	}

	payload := make([]byte, hdr.PayloadLen)
	if _, err := io.ReadFull(in, payload); err != nil {
		return nil, 0, fmt.Errorf("%w: %s", ErrTruncated, err)
	}

	var stored uint32
	if err := binary.Read(r, binary.LittleEndian, &stored); err != nil {
		return nil, 0, fmt.Errorf("%w: %s", ErrTruncated, err)
	}
	if stored != crc.Sum32() {
		return nil, 0, ErrChecksum
	}

	rawLen := int(hdr.Count) * int(hdr.Dim) * int(hdr.Width)
	raw, err := decompress(Codec(hdr.Codec), payload, rawLen)
	if err != nil {
		return nil, 0, err
	}
	if len(raw) != rawLen {
		return nil, 0, fmt.Errorf("%w: payload is %d bytes, header says %d", ErrTruncated, len(raw), rawLen)
	}

	points := make([]F, int(hdr.Count)*int(hdr.Dim))
	copy(points, wire.View[F](raw))
	return points, int(hdr.Dim), nil
}

// Save writes points to path via an atomic temp-file rename.
func Save[F numeric.Feature](path string, points []F, dim int, codec Codec) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".pimd-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := Encode(tmp, points, dim, codec); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// Load reads a dataset file written by Save.
func Load[F numeric.Feature](path string) ([]F, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()

	return Decode[F](f)
}

func compress(codec Codec, raw []byte) ([]byte, error) {
	switch codec {
	case CodecNone:
		return raw, nil
	case CodecZstd:
		enc, err := zstd.NewWriter(nil)
		if err != nil {
			return nil, fmt.Errorf("zstd encoder: %w", err)
		}
		defer enc.Close()
		return enc.EncodeAll(raw, nil), nil
	case CodecLZ4:
		buf := make([]byte, lz4.CompressBlockBound(len(raw)))
		n, err := lz4.CompressBlock(raw, buf, nil)
		if err != nil {
			return nil, fmt.Errorf("lz4 compress: %w", err)
		}
		if n == 0 {
			// Incompressible block, store raw. Decode side detects
			// this by the payload length matching the raw length.
			return raw, nil
		}
		return buf[:n], nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrInvalidCodec, codec)
	}
}

func decompress(codec Codec, payload []byte, rawLen int) ([]byte, error) {
	switch codec {
	case CodecNone:
		return payload, nil
	case CodecZstd:
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return nil, fmt.Errorf("zstd decoder: %w", err)
		}
		defer dec.Close()
		raw, err := dec.DecodeAll(payload, nil)
		if err != nil {
			return nil, fmt.Errorf("zstd decompress: %w", err)
		}
		return raw, nil
	case CodecLZ4:
		if len(payload) == rawLen {
			return payload, nil
		}
		raw := make([]byte, rawLen)
		n, err := lz4.UncompressBlock(payload, raw)
		if err != nil {
			return nil, fmt.Errorf("lz4 decompress: %w", err)
		}
		return raw[:n], nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrInvalidCodec, codec)
	}
}
