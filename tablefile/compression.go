package tablefile

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	"github.com/klauspost/compress/s2"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression defines the payload compression algorithm.
type Compression uint8

const (
	// CompressionNone stores the payload raw.
	CompressionNone Compression = 0
	// CompressionLZ4 uses LZ4 block compression (fast).
	CompressionLZ4 Compression = 1
	// CompressionZstd uses Zstandard (better ratio, good for cold data).
	CompressionZstd Compression = 2
	// CompressionS2 uses the S2 stream format, a faster Snappy extension.
	CompressionS2 Compression = 3
)

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionZstd:
		return "zstd"
	case CompressionS2:
		return "s2"
	default:
		return fmt.Sprintf("Compression(%d)", uint8(c))
	}
}

var (
	lz4CompressorPool = sync.Pool{
		New: func() any { return &lz4.Compressor{} },
	}
	zstdEncoderPool sync.Pool
	zstdDecoderPool sync.Pool
)

func getZstdEncoder() *zstd.Encoder {
	if v := zstdEncoderPool.Get(); v != nil {
		return v.(*zstd.Encoder)
	}
	// The file carries its own CRC32C.
	enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault), zstd.WithEncoderCRC(false))
	return enc
}

// maxZstdWindow bounds the history a forged frame header can request.
const maxZstdWindow = 64 << 20

func getZstdDecoder() *zstd.Decoder {
	if v := zstdDecoderPool.Get(); v != nil {
		return v.(*zstd.Decoder)
	}
	dec, _ := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1), zstd.WithDecoderMaxWindow(maxZstdWindow))
	return dec
}

// compress returns the compressed payload and the algorithm actually used.
// Payloads that do not shrink below 90% are stored raw.
func compress(data []byte, c Compression) ([]byte, Compression, error) {
	if c == CompressionNone || len(data) == 0 {
		return data, CompressionNone, nil
	}

	var out []byte
	switch c {
	case CompressionLZ4:
		dst := make([]byte, lz4.CompressBlockBound(len(data)))
		lc := lz4CompressorPool.Get().(*lz4.Compressor)
		n, err := lc.CompressBlock(data, dst)
		lz4CompressorPool.Put(lc)
		if err != nil {
			return nil, 0, err
		}
		out = dst[:n] // n == 0 means incompressible
	case CompressionZstd:
		enc := getZstdEncoder()
		out = enc.EncodeAll(data, nil)
		zstdEncoderPool.Put(enc)
	case CompressionS2:
		var buf bytes.Buffer
		sw := s2.NewWriter(&buf, s2.WriterConcurrency(1))
		if _, err := sw.Write(data); err != nil {
			return nil, 0, err
		}
		if err := sw.Close(); err != nil {
			return nil, 0, err
		}
		out = buf.Bytes()
	default:
		return nil, 0, fmt.Errorf("%w: unknown compression %d", ErrInvalidTable, uint8(c))
	}

	if len(out) == 0 || float64(len(out)) > float64(len(data))*0.9 {
		return data, CompressionNone, nil
	}
	return out, c, nil
}

// maxLZ4Ratio is the largest expansion an LZ4 block can encode: every
// extension byte adds at most 255 bytes of output.
const maxLZ4Ratio = 255

// decompress expands payload into exactly rawLen bytes. Output buffers are
// sized from the payload actually read, never from rawLen alone.
func decompress(payload []byte, c Compression, rawLen int) ([]byte, error) {
	switch c {
	case CompressionNone:
		if len(payload) != rawLen {
			return nil, fmt.Errorf("%w: raw payload is %d bytes, want %d", ErrCorrupt, len(payload), rawLen)
		}
		return payload, nil
	case CompressionLZ4:
		if rawLen/maxLZ4Ratio > len(payload) {
			return nil, fmt.Errorf("%w: lz4 payload of %d bytes cannot expand to %d", ErrCorrupt, len(payload), rawLen)
		}
		out := make([]byte, rawLen)
		n, err := lz4.UncompressBlock(payload, out)
		if err != nil {
			return nil, fmt.Errorf("%w: lz4: %w", ErrCorrupt, err)
		}
		if n != rawLen {
			return nil, fmt.Errorf("%w: lz4 produced %d bytes, want %d", ErrCorrupt, n, rawLen)
		}
		return out, nil
	case CompressionZstd:
		dec := getZstdDecoder()
		defer zstdDecoderPool.Put(dec)
		if err := dec.Reset(bytes.NewReader(payload)); err != nil {
			return nil, fmt.Errorf("%w: zstd: %w", ErrCorrupt, err)
		}
		return expand(dec, "zstd", len(payload), rawLen)
	case CompressionS2:
		return expand(s2.NewReader(bytes.NewReader(payload)), "s2", len(payload), rawLen)
	default:
		return nil, fmt.Errorf("%w: unknown compression %d", ErrCorrupt, uint8(c))
	}
}

// expand reads exactly rawLen bytes from a streaming decoder. The buffer
// starts at a small multiple of the compressed size and grows with the
// decoded output.
func expand(r io.Reader, codec string, plen, rawLen int) ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(min(rawLen, 4*plen))
	if _, err := buf.ReadFrom(io.LimitReader(r, int64(rawLen)+1)); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrCorrupt, codec, err)
	}
	if buf.Len() != rawLen {
		return nil, fmt.Errorf("%w: %s produced %d bytes, want %d", ErrCorrupt, codec, buf.Len(), rawLen)
	}
	return buf.Bytes(), nil
}
