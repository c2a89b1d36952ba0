package headindex

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"math"
)

const (
	codecMagic   = 0x49485053 // "SPHI"
	codecVersion = 1
	headerSize   = 16
)

// MarshalBinary encodes the index.
//
// Layout: magic, version, CRC32 of payload, payload length (4 bytes each),
// followed by the payload:
//
//	Variant, Dim, NextHead, NumRoots, NumNodes (4 bytes each)
//	Roots (4 bytes each)
//	Nodes...
//	  Head (4 bytes, -1 for internal nodes)
//	  NumChildren (4 bytes)
//	  Children (4 bytes each)
//	  Centroid (Dim float32)
func (ix *Index) MarshalBinary() ([]byte, error) {
	size := 20 + 4*len(ix.roots)
	for i := range ix.nodes {
		size += 8 + 4*len(ix.nodes[i].Children) + 4*ix.dim
	}
	payload := make([]byte, 0, size)
	payload = binary.LittleEndian.AppendUint32(payload, uint32(ix.variant))
	payload = binary.LittleEndian.AppendUint32(payload, uint32(ix.dim))
	payload = binary.LittleEndian.AppendUint32(payload, ix.nextHead)
	payload = binary.LittleEndian.AppendUint32(payload, uint32(len(ix.roots)))
	payload = binary.LittleEndian.AppendUint32(payload, uint32(len(ix.nodes)))
	for _, r := range ix.roots {
		payload = binary.LittleEndian.AppendUint32(payload, uint32(r))
	}
	for i := range ix.nodes {
		nd := &ix.nodes[i]
		payload = binary.LittleEndian.AppendUint32(payload, uint32(nd.Head))
		payload = binary.LittleEndian.AppendUint32(payload, uint32(len(nd.Children)))
		for _, c := range nd.Children {
			payload = binary.LittleEndian.AppendUint32(payload, uint32(c))
		}
		for _, f := range nd.Centroid {
			payload = binary.LittleEndian.AppendUint32(payload, math.Float32bits(f))
		}
	}

	out := make([]byte, headerSize, headerSize+len(payload))
	binary.LittleEndian.PutUint32(out[0:4], codecMagic)
	binary.LittleEndian.PutUint32(out[4:8], codecVersion)
	binary.LittleEndian.PutUint32(out[8:12], crc32.ChecksumIEEE(payload))
	binary.LittleEndian.PutUint32(out[12:16], uint32(len(payload)))
	return append(out, payload...), nil
}

// Unmarshal decodes and verifies an index produced by MarshalBinary.
func Unmarshal(data []byte) (*Index, error) {
	if len(data) < headerSize {
		return nil, fmt.Errorf("%w: short header", ErrCorrupt)
	}
	if m := binary.LittleEndian.Uint32(data[0:4]); m != codecMagic {
		return nil, fmt.Errorf("%w: invalid magic %x", ErrCorrupt, m)
	}
	if v := binary.LittleEndian.Uint32(data[4:8]); v != codecVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrCorrupt, v)
	}
	sum := binary.LittleEndian.Uint32(data[8:12])
	length := binary.LittleEndian.Uint32(data[12:16])
	if uint64(len(data)-headerSize) != uint64(length) {
		return nil, fmt.Errorf("%w: payload length %d, have %d", ErrCorrupt, length, len(data)-headerSize)
	}
	payload := data[headerSize:]
	if crc32.ChecksumIEEE(payload) != sum {
		return nil, fmt.Errorf("%w: checksum mismatch", ErrCorrupt)
	}

	r := reader{buf: payload}
	ix := &Index{
		variant:  Variant(r.uint32()),
		dim:      int(r.uint32()),
		nextHead: r.uint32(),
	}
	numRoots := int(r.uint32())
	numNodes := int(r.uint32())
	if r.err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, r.err)
	}
	if !ix.variant.Valid() || ix.dim <= 0 {
		return nil, fmt.Errorf("%w: variant %d dim %d", ErrCorrupt, ix.variant, ix.dim)
	}
	// Each root needs 4 bytes and each node at least 8.
	if numRoots > r.remaining()/4 || numNodes > r.remaining()/8 {
		return nil, fmt.Errorf("%w: counts exceed payload", ErrCorrupt)
	}

	ix.roots = make([]int32, numRoots)
	for i := range ix.roots {
		ix.roots[i] = int32(r.uint32())
	}
	ix.nodes = make([]Node, numNodes)
	for i := range ix.nodes {
		nd := &ix.nodes[i]
		nd.Head = int32(r.uint32())
		nc := int(r.uint32())
		if r.err != nil || nc > r.remaining()/4 {
			return nil, fmt.Errorf("%w: node %d truncated", ErrCorrupt, i)
		}
		if nc > 0 {
			nd.Children = make([]int32, nc)
			for j := range nd.Children {
				nd.Children[j] = int32(r.uint32())
			}
		}
		if ix.dim > r.remaining()/4 {
			return nil, fmt.Errorf("%w: node %d truncated", ErrCorrupt, i)
		}
		nd.Centroid = make([]float32, ix.dim)
		for j := range nd.Centroid {
			nd.Centroid[j] = math.Float32frombits(r.uint32())
		}
	}
	if r.err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, r.err)
	}
	if r.remaining() != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrCorrupt, r.remaining())
	}

	ix.indexLeaves()
	if err := ix.validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return ix, nil
}

type reader struct {
	buf []byte
	pos int
	err error
}

func (r *reader) uint32() uint32 {
	if r.err != nil {
		return 0
	}
	if r.pos+4 > len(r.buf) {
		r.err = fmt.Errorf("unexpected end of payload at %d", r.pos)
		return 0
	}
	v := binary.LittleEndian.Uint32(r.buf[r.pos:])
	r.pos += 4
	return v
}

func (r *reader) remaining() int { return len(r.buf) - r.pos }
