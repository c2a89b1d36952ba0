package manifest

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
	"time"
)

const (
	binaryMagic   = 0x4D525053 // "SPRM"
	binaryVersion = 1
)

// WriteBinary writes the manifest in binary format.
// Format:
// Magic (4 bytes)
// Version (4 bytes)
// Checksum (4 bytes) - CRC32 of payload
// PayloadLength (4 bytes)
// Payload:
//
//	ID (8 bytes)
//	SnapshotID (string)
//	CreatedAt (8 bytes) - UnixNano
//	Dim (8 bytes)
//	Metric (string)
//	Variant (string)
//	Compression (string)
//	NextID (8 bytes)
//	NextHead (4 bytes)
//	Params (bytes)
//	Heads (blob)
//	NumPostings (4 bytes)
//	Postings...
//	  Head (4 bytes)
//	  Count (8 bytes)
//	  Blob
//
// A blob is Path (string), Size (8 bytes), CRC (4 bytes). Strings carry a
// 2-byte length prefix, byte fields a 4-byte one.
func (m *Manifest) WriteBinary(w io.Writer) error {
	payloadSize := 160 + len(m.Params) + len(m.Postings)*48
	pb := newPayloadBuffer(make([]byte, 0, payloadSize))

	pb.writeUint64(m.ID)
	pb.writeString(m.SnapshotID)
	pb.writeUint64(uint64(m.CreatedAt.UnixNano()))
	pb.writeUint64(uint64(m.Dim))
	pb.writeString(m.Metric)
	pb.writeString(m.Variant)
	pb.writeString(m.Compression)
	pb.writeUint64(m.NextID)
	pb.writeUint32(m.NextHead)
	pb.writeBytes(m.Params)
	pb.writeBlob(m.Heads)
	pb.writeUint32(uint32(len(m.Postings)))
	for _, p := range m.Postings {
		pb.writeUint32(p.Head)
		pb.writeUint64(p.Count)
		pb.writeBlob(p.BlobInfo)
	}

	if pb.err != nil {
		return pb.err
	}

	payload := pb.buf
	header := make([]byte, 16)
	binary.LittleEndian.PutUint32(header[0:4], binaryMagic)
	binary.LittleEndian.PutUint32(header[4:8], binaryVersion)
	binary.LittleEndian.PutUint32(header[8:12], crc32.ChecksumIEEE(payload))
	binary.LittleEndian.PutUint32(header[12:16], uint32(len(payload)))

	if _, err := w.Write(header); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}

// ReadBinary reads a manifest written by WriteBinary.
func ReadBinary(r io.Reader) (*Manifest, error) {
	header := make([]byte, 16)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, fmt.Errorf("%w: header: %v", ErrCorrupt, err)
	}

	if magic := binary.LittleEndian.Uint32(header[0:4]); magic != binaryMagic {
		return nil, fmt.Errorf("%w: invalid magic %x", ErrCorrupt, magic)
	}
	version := binary.LittleEndian.Uint32(header[4:8])
	if version != binaryVersion {
		return nil, fmt.Errorf("%w: %d", ErrIncompatibleVersion, version)
	}
	checksum := binary.LittleEndian.Uint32(header[8:12])
	length := binary.LittleEndian.Uint32(header[12:16])

	payload, err := io.ReadAll(io.LimitReader(r, int64(length)+1))
	if err != nil {
		return nil, err
	}
	if len(payload) != int(length) {
		return nil, fmt.Errorf("%w: payload length %d, want %d", ErrCorrupt, len(payload), length)
	}
	if crc32.ChecksumIEEE(payload) != checksum {
		return nil, fmt.Errorf("%w: checksum mismatch", ErrCorrupt)
	}

	pb := newPayloadBuffer(payload)
	m := &Manifest{Version: int(version)}

	m.ID = pb.readUint64()
	m.SnapshotID = pb.readString()
	m.CreatedAt = time.Unix(0, int64(pb.readUint64())).UTC()
	m.Dim = int(pb.readUint64())
	m.Metric = pb.readString()
	m.Variant = pb.readString()
	m.Compression = pb.readString()
	m.NextID = pb.readUint64()
	m.NextHead = pb.readUint32()
	m.Params = pb.readBytes()
	m.Heads = pb.readBlob()

	n := pb.readUint32()
	// Each posting entry takes at least 26 bytes.
	if pb.err == nil && int(n) > pb.remaining()/26 {
		return nil, fmt.Errorf("%w: %d postings exceed payload", ErrCorrupt, n)
	}
	m.Postings = make([]PostingInfo, n)
	for i := range m.Postings {
		m.Postings[i].Head = pb.readUint32()
		m.Postings[i].Count = pb.readUint64()
		m.Postings[i].BlobInfo = pb.readBlob()
	}

	if pb.err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, pb.err)
	}
	if pb.remaining() != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrCorrupt, pb.remaining())
	}
	return m, nil
}

type payloadBuffer struct {
	buf []byte
	pos int
	err error
}

func newPayloadBuffer(b []byte) *payloadBuffer {
	return &payloadBuffer{buf: b}
}

func (p *payloadBuffer) remaining() int { return len(p.buf) - p.pos }

func (p *payloadBuffer) writeUint64(v uint64) {
	if p.err != nil {
		return
	}
	p.buf = binary.LittleEndian.AppendUint64(p.buf, v)
}

func (p *payloadBuffer) writeUint32(v uint32) {
	if p.err != nil {
		return
	}
	p.buf = binary.LittleEndian.AppendUint32(p.buf, v)
}

func (p *payloadBuffer) writeString(s string) {
	if p.err != nil {
		return
	}
	if len(s) > 65535 {
		p.err = fmt.Errorf("manifest: string too long: %d", len(s))
		return
	}
	p.buf = binary.LittleEndian.AppendUint16(p.buf, uint16(len(s)))
	p.buf = append(p.buf, s...)
}

func (p *payloadBuffer) writeBytes(b []byte) {
	p.writeUint32(uint32(len(b)))
	if p.err != nil {
		return
	}
	p.buf = append(p.buf, b...)
}

func (p *payloadBuffer) writeBlob(b BlobInfo) {
	p.writeString(b.Path)
	p.writeUint64(uint64(b.Size))
	p.writeUint32(b.CRC)
}

func (p *payloadBuffer) readUint64() uint64 {
	if p.err != nil {
		return 0
	}
	if p.pos+8 > len(p.buf) {
		p.err = io.ErrUnexpectedEOF
		return 0
	}
	v := binary.LittleEndian.Uint64(p.buf[p.pos:])
	p.pos += 8
	return v
}

func (p *payloadBuffer) readUint32() uint32 {
	if p.err != nil {
		return 0
	}
	if p.pos+4 > len(p.buf) {
		p.err = io.ErrUnexpectedEOF
		return 0
	}
	v := binary.LittleEndian.Uint32(p.buf[p.pos:])
	p.pos += 4
	return v
}

func (p *payloadBuffer) readString() string {
	if p.err != nil {
		return ""
	}
	if p.pos+2 > len(p.buf) {
		p.err = io.ErrUnexpectedEOF
		return ""
	}
	l := int(binary.LittleEndian.Uint16(p.buf[p.pos:]))
	p.pos += 2
	if p.pos+l > len(p.buf) {
		p.err = io.ErrUnexpectedEOF
		return ""
	}
	s := string(p.buf[p.pos : p.pos+l])
	p.pos += l
	return s
}

func (p *payloadBuffer) readBytes() []byte {
	l := int(p.readUint32())
	if p.err != nil {
		return nil
	}
	if l > p.remaining() {
		p.err = io.ErrUnexpectedEOF
		return nil
	}
	b := make([]byte, l)
	copy(b, p.buf[p.pos:])
	p.pos += l
	return b
}

func (p *payloadBuffer) readBlob() BlobInfo {
	return BlobInfo{
		Path: p.readString(),
		Size: int64(p.readUint64()),
		CRC:  p.readUint32(),
	}
}
