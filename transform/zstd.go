package transform

import (
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
)

// The codec is shared process-wide: EncodeAll and DecodeAll are safe for
// concurrent use, and a decoder owns background goroutines that are only
// released by Close.
var (
	sharedEncoder = sync.OnceValues(func() (*zstd.Encoder, error) {
		return zstd.NewWriter(nil,
			zstd.WithEncoderLevel(zstd.SpeedDefault),
			zstd.WithZeroFrames(true),
		)
	})
	sharedDecoder = sync.OnceValues(func() (*zstd.Decoder, error) {
		return zstd.NewReader(nil)
	})
)

type zstdCompress struct {
	encoder *zstd.Encoder
}

// NewZstdCompress returns a transform that compresses with Zstandard at the
// default level.
func NewZstdCompress() (Transform, error) {
	enc, err := sharedEncoder()
	if err != nil {
		return nil, fmt.Errorf("zstd: failed to initialize encoder: %w", err)
	}
	return &zstdCompress{encoder: enc}, nil
}

func (z *zstdCompress) Name() string { return "zstd" }

func (z *zstdCompress) Apply(data []byte) ([]byte, error) {
	return z.encoder.EncodeAll(data, make([]byte, 0, len(data)/2)), nil
}

type zstdDecompress struct {
	decoder *zstd.Decoder
}

// NewZstdDecompress returns the inverse of NewZstdCompress.
func NewZstdDecompress() (Transform, error) {
	dec, err := sharedDecoder()
	if err != nil {
		return nil, fmt.Errorf("zstd: failed to initialize decoder: %w", err)
	}
	return &zstdDecompress{decoder: dec}, nil
}

func (z *zstdDecompress) Name() string { return "unzstd" }

func (z *zstdDecompress) Apply(data []byte) ([]byte, error) {
	out, err := z.decoder.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("zstd decompress: %w", err)
	}
	return out, nil
}
