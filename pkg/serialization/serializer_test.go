package serialization

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type manifest struct {
	ID      uuid.UUID         `json:"id" msgpack:"id"`
	Flow    string            `json:"flow" msgpack:"flow"`
	Scenes  map[string]string `json:"scenes" msgpack:"scenes"`
	Created time.Time         `json:"created" msgpack:"created"`
}

func sample() manifest {
	return manifest{
		ID:   uuid.New(),
		Flow: "main",
		Scenes: map[string]string{
			"Lobby": "// FLOW_TRIGGER: id=openDoor\n" + string(bytes.Repeat([]byte("x"), 512)),
		},
		Created: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestSerializer_Combinations(t *testing.T) {
	key := bytes.Repeat([]byte{7}, 32)
	tests := []struct {
		name string
		opts Options
	}{
		{"json plain", Options{Codec: JSON()}},
		{"msgpack gzip", Options{Codec: MsgPack(), Compression: CompressionGzip}},
		{"msgpack zstd", Options{Codec: MsgPack(), Compression: CompressionZstd}},
		{"json zstd sealed", Options{Codec: JSON(), Compression: CompressionZstd, EncryptKey: key}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := New(tt.opts)
			require.NoError(t, err)

			in := sample()
			blob, err := s.Serialize(in)
			require.NoError(t, err)

			var out manifest
			require.NoError(t, s.Deserialize(blob, &out))
			assert.Equal(t, in.ID, out.ID)
			assert.Equal(t, in.Scenes, out.Scenes)
			assert.True(t, in.Created.Equal(out.Created))
		})
	}
}

func TestSerializer_ReadsForeignHeader(t *testing.T) {
	gz, err := New(Options{Codec: JSON(), Compression: CompressionGzip})
	require.NoError(t, err)
	blob, err := gz.Serialize(sample())
	require.NoError(t, err)

	var out manifest
	require.NoError(t, Default().Deserialize(blob, &out))
	assert.Equal(t, "main", out.Flow)
}

func TestSerializer_CompressionShrinks(t *testing.T) {
	plain, err := New(Options{Codec: MsgPack()})
	require.NoError(t, err)
	a, err := plain.Serialize(sample())
	require.NoError(t, err)
	b, err := Default().Serialize(sample())
	require.NoError(t, err)
	assert.Less(t, len(b), len(a))
}

func TestSerializer_Errors(t *testing.T) {
	_, err := New(Options{Compression: "lz4"})
	assert.ErrorIs(t, err, ErrUnknownCompressor)

	_, err = New(Options{EncryptKey: []byte("short")})
	assert.ErrorIs(t, err, ErrBadKey)

	var out manifest
	assert.ErrorIs(t, Default().Deserialize([]byte{'m'}, &out), ErrShortBlob)
	assert.ErrorIs(t, Default().Deserialize([]byte{'q', '0'}, &out), ErrUnknownCodec)

	sealed, err := New(Options{EncryptKey: bytes.Repeat([]byte{1}, 16)})
	require.NoError(t, err)
	blob, err := sealed.Serialize(sample())
	require.NoError(t, err)
	other, err := New(Options{EncryptKey: bytes.Repeat([]byte{2}, 16)})
	require.NoError(t, err)
	assert.Error(t, other.Deserialize(blob, &out))
}

func TestCodecByName(t *testing.T) {
	for name, want := range map[string]string{"": "msgpack", "msgpack": "msgpack", "json": "json"} {
		c, err := CodecByName(name)
		require.NoError(t, err)
		assert.Equal(t, want, c.Name())
	}
	_, err := CodecByName("gob")
	assert.ErrorIs(t, err, ErrUnknownCodec)
}

func TestParseKey(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		wantLen int
		wantErr bool
	}{
		{"empty", "", 0, false},
		{"aes-128", strings.Repeat("ab", 16), 16, false},
		{"aes-256", strings.Repeat("0f", 32), 32, false},
		{"not hex", strings.Repeat("zz", 16), 0, true},
		{"wrong size", strings.Repeat("ab", 10), 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key, err := ParseKey(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrBadKey)
				return
			}
			require.NoError(t, err)
			assert.Len(t, key, tt.wantLen)
		})
	}
}
