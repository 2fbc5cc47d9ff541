package recorder

import (
	"bytes"

	"github.com/klauspost/compress/zlib"
	"github.com/pierrec/lz4/v4"
)

// Compressor optionally compresses an ExtMemValue's out-of-band bytes
// before they are appended to the recorder log (spec.md §4.4 step 3:
// "optionally zlib-compressed if compression is enabled for that topic").
type Compressor interface {
	Compress(data []byte) ([]byte, error)
}

// ZlibCompressor is the spec-mandated reference compressor, backed by
// klauspost/compress's drop-in zlib implementation.
type ZlibCompressor struct{ Level int }

// NewZlibCompressor returns a ZlibCompressor at the given compression
// level (zlib.DefaultCompression if level is 0).
func NewZlibCompressor(level int) *ZlibCompressor {
	if level == 0 {
		level = zlib.DefaultCompression
	}
	return &ZlibCompressor{Level: level}
}

func (z *ZlibCompressor) Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := zlib.NewWriterLevel(&buf, z.Level)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// LZ4Compressor is the pack's optional fast alternative to zlib, for
// topics where write latency matters more than ratio.
type LZ4Compressor struct{}

func (LZ4Compressor) Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := lz4.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
