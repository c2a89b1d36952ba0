package posting

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression defines the block compression algorithm used for list bodies.
type Compression uint8

const (
	// CompressionNone stores blocks uncompressed.
	CompressionNone Compression = 0
	// CompressionLZ4 uses LZ4 block compression (fast, default).
	CompressionLZ4 Compression = 1
	// CompressionZSTD uses ZSTD block compression (better ratio).
	CompressionZSTD Compression = 2
)

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionZSTD:
		return "zstd"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(c))
	}
}

// ParseCompression parses a compression name.
func ParseCompression(s string) (Compression, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "none", "":
		return CompressionNone, nil
	case "lz4":
		return CompressionLZ4, nil
	case "zstd":
		return CompressionZSTD, nil
	default:
		return 0, fmt.Errorf("posting: unknown compression %q", s)
	}
}

var (
	zstdEncoderPool sync.Pool
	zstdDecoderPool sync.Pool
)

func getZstdEncoder() *zstd.Encoder {
	if v := zstdEncoderPool.Get(); v != nil {
		return v.(*zstd.Encoder)
	}
	enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	return enc
}

func putZstdEncoder(enc *zstd.Encoder) {
	zstdEncoderPool.Put(enc)
}

func getZstdDecoder() *zstd.Decoder {
	if v := zstdDecoderPool.Get(); v != nil {
		return v.(*zstd.Decoder)
	}
	dec, _ := zstd.NewReader(nil)
	return dec
}

func putZstdDecoder(dec *zstd.Decoder) {
	zstdDecoderPool.Put(dec)
}

// Block format: [UncompressedSize uint32][CompressedSize uint32][Data...]
// CompressedSize == 0 means the block is stored raw.
const blockHeaderSize = 8

const defaultBlockSize = 256 * 1024

var errCorruptBlock = errors.New("posting: corrupt block")

// compressBlock compresses a block and prefixes the block header.
// Blocks that do not shrink below 90% are stored raw.
func compressBlock(data []byte, c Compression) ([]byte, error) {
	var compressed []byte
	switch c {
	case CompressionLZ4:
		buf := make([]byte, lz4.CompressBlockBound(len(data)))
		n, err := lz4.CompressBlock(data, buf, nil)
		if err != nil {
			return nil, err
		}
		compressed = buf[:n]
	case CompressionZSTD:
		enc := getZstdEncoder()
		compressed = enc.EncodeAll(data, nil)
		putZstdEncoder(enc)
	}

	if len(compressed) == 0 || float64(len(compressed)) > float64(len(data))*0.9 {
		out := make([]byte, blockHeaderSize+len(data))
		binary.LittleEndian.PutUint32(out[0:], uint32(len(data)))
		binary.LittleEndian.PutUint32(out[4:], 0)
		copy(out[blockHeaderSize:], data)
		return out, nil
	}

	out := make([]byte, blockHeaderSize+len(compressed))
	binary.LittleEndian.PutUint32(out[0:], uint32(len(data)))
	binary.LittleEndian.PutUint32(out[4:], uint32(len(compressed)))
	copy(out[blockHeaderSize:], compressed)
	return out, nil
}

// blockWriter splits a stream into fixed-size blocks and compresses each.
type blockWriter struct {
	w           io.Writer
	compression Compression
	blockSize   int
	buffer      *bytes.Buffer
}

func newBlockWriter(w io.Writer, c Compression, blockSize int) *blockWriter {
	if blockSize <= 0 {
		blockSize = defaultBlockSize
	}
	return &blockWriter{
		w:           w,
		compression: c,
		blockSize:   blockSize,
		buffer:      bytes.NewBuffer(make([]byte, 0, blockSize)),
	}
}

func (b *blockWriter) Write(p []byte) (int, error) {
	total := 0
	for len(p) > 0 {
		space := b.blockSize - b.buffer.Len()
		if space <= 0 {
			if err := b.Flush(); err != nil {
				return total, err
			}
			space = b.blockSize
		}
		n, _ := b.buffer.Write(p[:min(len(p), space)])
		total += n
		p = p[n:]
	}
	return total, nil
}

// Flush compresses and writes the buffered block.
func (b *blockWriter) Flush() error {
	if b.buffer.Len() == 0 {
		return nil
	}
	block, err := compressBlock(b.buffer.Bytes(), b.compression)
	if err != nil {
		return err
	}
	if _, err := b.w.Write(block); err != nil {
		return err
	}
	b.buffer.Reset()
	return nil
}

// decompressAll decodes a sequence of blocks into a single buffer of
// expected size.
func decompressAll(data []byte, c Compression, expected int) ([]byte, error) {
	out := make([]byte, 0, expected)
	for off := 0; off < len(data); {
		if off+blockHeaderSize > len(data) {
			return nil, errCorruptBlock
		}
		rawSize := int(binary.LittleEndian.Uint32(data[off:]))
		compSize := int(binary.LittleEndian.Uint32(data[off+4:]))
		off += blockHeaderSize

		if compSize == 0 {
			if off+rawSize > len(data) {
				return nil, errCorruptBlock
			}
			out = append(out, data[off:off+rawSize]...)
			off += rawSize
			continue
		}

		if off+compSize > len(data) {
			return nil, errCorruptBlock
		}
		src := data[off : off+compSize]
		off += compSize

		switch c {
		case CompressionZSTD:
			dec := getZstdDecoder()
			decoded, err := dec.DecodeAll(src, nil)
			putZstdDecoder(dec)
			if err != nil {
				return nil, err
			}
			if len(decoded) != rawSize {
				return nil, errCorruptBlock
			}
			out = append(out, decoded...)
		case CompressionLZ4:
			buf := make([]byte, rawSize)
			n, err := lz4.UncompressBlock(src, buf)
			if err != nil {
				return nil, err
			}
			if n != rawSize {
				return nil, errCorruptBlock
			}
			out = append(out, buf...)
		default:
			return nil, errCorruptBlock
		}
	}
	if len(out) != expected {
		return nil, errCorruptBlock
	}
	return out, nil
}
