package posting

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"math"
)

const (
	listMagic   = 0x4C505053 // "SPPL"
	listVersion = 1

	listHeaderSize  = 32
	listTrailerSize = 4
)

// ErrCorrupt is returned when an encoded list fails validation.
var ErrCorrupt = errors.New("posting: corrupt list")

// EncodeList serializes a view of head's list.
//
// Format:
//
//	Header (32 bytes):
//	  Magic (4) Version (2) Compression (1) Reserved (1)
//	  Head (4) Dim (4) Count (8) BodyLen (8)
//	Body: compressed blocks of
//	  IDs (Count*8) Vectors (Count*Dim*4) MetaLens (Count*4) Meta (...)
//	Trailer: CRC32 (4) over header and body
func EncodeList(v View, head uint32, c Compression) ([]byte, error) {
	n := v.Len()
	metaBytes := 0
	for _, m := range v.Metadata {
		metaBytes += len(m)
	}
	bodyLen := n*8 + len(v.Vectors)*4 + n*4 + metaBytes

	body := make([]byte, 0, bodyLen)
	for _, id := range v.IDs {
		body = binary.LittleEndian.AppendUint64(body, id)
	}
	for _, f := range v.Vectors {
		body = binary.LittleEndian.AppendUint32(body, math.Float32bits(f))
	}
	for _, m := range v.Metadata {
		body = binary.LittleEndian.AppendUint32(body, uint32(len(m)))
	}
	for _, m := range v.Metadata {
		body = append(body, m...)
	}

	var buf bytes.Buffer
	buf.Grow(listHeaderSize + len(body)/2 + listTrailerSize)

	header := make([]byte, listHeaderSize)
	binary.LittleEndian.PutUint32(header[0:], listMagic)
	binary.LittleEndian.PutUint16(header[4:], listVersion)
	header[6] = byte(c)
	binary.LittleEndian.PutUint32(header[8:], head)
	binary.LittleEndian.PutUint32(header[12:], uint32(v.Dim))
	binary.LittleEndian.PutUint64(header[16:], uint64(n))
	binary.LittleEndian.PutUint64(header[24:], uint64(len(body)))
	buf.Write(header)

	bw := newBlockWriter(&buf, c, defaultBlockSize)
	if _, err := bw.Write(body); err != nil {
		return nil, err
	}
	if err := bw.Flush(); err != nil {
		return nil, err
	}

	sum := crc32.ChecksumIEEE(buf.Bytes())
	buf.Write(binary.LittleEndian.AppendUint32(nil, sum))
	return buf.Bytes(), nil
}

// DecodeList parses an encoded list and verifies its checksum and dimension.
func DecodeList(data []byte, dim int) (*List, error) {
	if len(data) < listHeaderSize+listTrailerSize {
		return nil, fmt.Errorf("%w: short blob (%d bytes)", ErrCorrupt, len(data))
	}
	payload := data[:len(data)-listTrailerSize]
	want := binary.LittleEndian.Uint32(data[len(data)-listTrailerSize:])
	if got := crc32.ChecksumIEEE(payload); got != want {
		return nil, fmt.Errorf("%w: checksum mismatch (expected %08x, got %08x)", ErrCorrupt, want, got)
	}

	if magic := binary.LittleEndian.Uint32(payload[0:]); magic != listMagic {
		return nil, fmt.Errorf("%w: invalid magic %x", ErrCorrupt, magic)
	}
	if v := binary.LittleEndian.Uint16(payload[4:]); v != listVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrCorrupt, v)
	}
	c := Compression(payload[6])
	head := binary.LittleEndian.Uint32(payload[8:])
	if d := int(binary.LittleEndian.Uint32(payload[12:])); d != dim {
		return nil, fmt.Errorf("%w: dimension %d, expected %d", ErrCorrupt, d, dim)
	}
	count := binary.LittleEndian.Uint64(payload[16:])
	bodyLen := binary.LittleEndian.Uint64(payload[24:])

	minBody := count * uint64(8+dim*4+4)
	if bodyLen < minBody || bodyLen > uint64(math.MaxInt32)*16 {
		return nil, fmt.Errorf("%w: body length %d for %d records", ErrCorrupt, bodyLen, count)
	}

	body, err := decompressAll(payload[listHeaderSize:], c, int(bodyLen))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}

	n := int(count)
	l := newList(head, dim, n)
	off := 0
	for i := 0; i < n; i++ {
		l.ids = append(l.ids, binary.LittleEndian.Uint64(body[off:]))
		off += 8
	}
	for i := 0; i < n*dim; i++ {
		l.vectors = append(l.vectors, math.Float32frombits(binary.LittleEndian.Uint32(body[off:])))
		off += 4
	}
	lens := make([]int, n)
	total := 0
	for i := 0; i < n; i++ {
		lens[i] = int(binary.LittleEndian.Uint32(body[off:]))
		total += lens[i]
		off += 4
	}
	if off+total != len(body) {
		return nil, fmt.Errorf("%w: metadata length mismatch", ErrCorrupt)
	}
	for i := 0; i < n; i++ {
		var m []byte
		if lens[i] > 0 {
			m = bytes.Clone(body[off : off+lens[i]])
		}
		l.meta = append(l.meta, m)
		off += lens[i]
	}
	return l, nil
}
