package cli

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
)

// readFvecs reads vectors in the fvecs layout: per vector a little-endian
// int32 dimension followed by that many float32 values. limit > 0 stops
// after limit vectors.
func readFvecs(r io.Reader, limit int) ([][]float32, error) {
	br := bufio.NewReader(r)
	var (
		out  [][]float32
		head [4]byte
		dim  int
	)
	for limit <= 0 || len(out) < limit {
		if _, err := io.ReadFull(br, head[:]); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("vector %d: %w", len(out), err)
		}
		d := int(int32(binary.LittleEndian.Uint32(head[:])))
		if d <= 0 {
			return nil, fmt.Errorf("vector %d: invalid dimension %d", len(out), d)
		}
		if dim == 0 {
			dim = d
		} else if d != dim {
			return nil, fmt.Errorf("vector %d: dimension %d, expected %d", len(out), d, dim)
		}
		buf := make([]byte, 4*d)
		if _, err := io.ReadFull(br, buf); err != nil {
			return nil, fmt.Errorf("vector %d: %w", len(out), err)
		}
		v := make([]float32, d)
		for i := range v {
			v[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[4*i:]))
		}
		out = append(out, v)
	}
	return out, nil
}

func readFvecsFile(path string, limit int) ([][]float32, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return readFvecs(f, limit)
}

// writeFvecs writes vecs in the fvecs layout.
func writeFvecs(w io.Writer, vecs [][]float32) error {
	bw := bufio.NewWriter(w)
	var word [4]byte
	for _, v := range vecs {
		binary.LittleEndian.PutUint32(word[:], uint32(len(v)))
		if _, err := bw.Write(word[:]); err != nil {
			return err
		}
		for _, x := range v {
			binary.LittleEndian.PutUint32(word[:], math.Float32bits(x))
			if _, err := bw.Write(word[:]); err != nil {
				return err
			}
		}
	}
	return bw.Flush()
}

// parseVector parses a comma separated list of floats.
func parseVector(s string) ([]float32, error) {
	fields := strings.Split(s, ",")
	v := make([]float32, 0, len(fields))
	for _, f := range fields {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		x, err := strconv.ParseFloat(f, 32)
		if err != nil {
			return nil, fmt.Errorf("parse %q: %w", f, err)
		}
		v = append(v, float32(x))
	}
	if len(v) == 0 {
		return nil, errors.New("empty vector")
	}
	return v, nil
}
