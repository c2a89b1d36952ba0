package posting

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildList(t *testing.T, dim, n int) *List {
	t.Helper()
	l := newList(3, dim, n)
	for i := 0; i < n; i++ {
		v := make([]float32, dim)
		for j := range v {
			v[j] = float32(i % 7) // repetitive data compresses
		}
		var meta []byte
		if i%2 == 0 {
			meta = []byte("payload")
		}
		_, err := l.Append(Record{ID: uint64(100 + i), Vector: v, Metadata: meta})
		require.NoError(t, err)
	}
	return l
}

func TestCodec_RoundTrip(t *testing.T) {
	for _, c := range []Compression{CompressionNone, CompressionLZ4, CompressionZSTD} {
		t.Run(c.String(), func(t *testing.T) {
			l := buildList(t, 16, 5000)
			data, err := EncodeList(l.View(), l.Head(), c)
			require.NoError(t, err)

			got, err := DecodeList(data, 16)
			require.NoError(t, err)
			assert.Equal(t, l.Head(), got.Head())

			want, have := l.View(), got.View()
			assert.Equal(t, want.IDs, have.IDs)
			assert.Equal(t, want.Vectors, have.Vectors)
			for i := range want.Metadata {
				assert.Equal(t, len(want.Metadata[i]), len(have.Metadata[i]))
			}
			assert.Equal(t, []byte("payload"), have.Metadata[0])
			assert.Nil(t, have.Metadata[1])
		})
	}
}

func TestCodec_CompressionShrinks(t *testing.T) {
	l := buildList(t, 16, 5000)
	raw, err := EncodeList(l.View(), l.Head(), CompressionNone)
	require.NoError(t, err)
	packed, err := EncodeList(l.View(), l.Head(), CompressionLZ4)
	require.NoError(t, err)
	assert.Less(t, len(packed), len(raw))
}

func TestCodec_Empty(t *testing.T) {
	l := newList(9, 4, 0)
	data, err := EncodeList(l.View(), 9, CompressionLZ4)
	require.NoError(t, err)
	got, err := DecodeList(data, 4)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Len())
	assert.Equal(t, uint32(9), got.Head())
}

func TestCodec_Corruption(t *testing.T) {
	l := buildList(t, 4, 10)
	data, err := EncodeList(l.View(), l.Head(), CompressionLZ4)
	require.NoError(t, err)

	t.Run("FlippedByte", func(t *testing.T) {
		bad := append([]byte(nil), data...)
		bad[len(bad)/2] ^= 0xFF
		_, err := DecodeList(bad, 4)
		assert.ErrorIs(t, err, ErrCorrupt)
	})

	t.Run("Truncated", func(t *testing.T) {
		_, err := DecodeList(data[:20], 4)
		assert.ErrorIs(t, err, ErrCorrupt)
	})

	t.Run("WrongDimension", func(t *testing.T) {
		_, err := DecodeList(data, 8)
		assert.ErrorIs(t, err, ErrCorrupt)
	})
}

func TestParseCompression(t *testing.T) {
	for _, name := range []string{"none", "lz4", "zstd"} {
		c, err := ParseCompression(name)
		require.NoError(t, err)
		assert.Equal(t, name, c.String())
	}
	c, err := ParseCompression("LZ4")
	require.NoError(t, err)
	assert.Equal(t, CompressionLZ4, c)

	_, err = ParseCompression("brotli")
	assert.Error(t, err)
}
