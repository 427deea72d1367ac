// Package serialization encodes asset blobs and bundle manifests.
//
// A blob is a two byte header (codec, compression) followed by the payload,
// optionally sealed with AES-GCM. The header lets a store read blobs written
// under a different configuration.
package serialization

import (
	"bytes"
	"compress/gzip"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/vmihailenco/msgpack/v5"
)

var (
	ErrShortBlob         = errors.New("blob too short")
	ErrUnknownCodec      = errors.New("unknown codec")
	ErrUnknownCompressor = errors.New("unknown compression")
	ErrBadKey            = errors.New("encryption key must be 16, 24 or 32 bytes")
)

// Codec turns values into bytes.
type Codec interface {
	Encode(v any) ([]byte, error)
	Decode(data []byte, v any) error
	Name() string
}

// CompressionType represents compression algorithms
type CompressionType string

const (
	CompressionNone CompressionType = "none"
	CompressionGzip CompressionType = "gzip"
	CompressionZstd CompressionType = "zstd"
)

// Header bytes.
const (
	codecJSON    byte = 'j'
	codecMsgPack byte = 'm'

	compNone byte = '0'
	compGzip byte = 'g'
	compZstd byte = 'z'
)

// Options configures a Serializer.
type Options struct {
	Codec       Codec
	Compression CompressionType
	EncryptKey  []byte
}

// Serializer runs encode, compress and seal in that order.
type Serializer struct {
	opts Options

	zstdOnce sync.Once
	zenc     *zstd.Encoder
	zdec     *zstd.Decoder
	zerr     error
}

// New creates a serializer. A nil codec means msgpack.
func New(opts Options) (*Serializer, error) {
	if opts.Codec == nil {
		opts.Codec = MsgPack()
	}
	if opts.Compression == "" {
		opts.Compression = CompressionNone
	}
	if _, err := compressionByte(opts.Compression); err != nil {
		return nil, err
	}
	if _, err := codecByte(opts.Codec); err != nil {
		return nil, err
	}
	switch len(opts.EncryptKey) {
	case 0, 16, 24, 32:
	default:
		return nil, ErrBadKey
	}
	return &Serializer{opts: opts}, nil
}

// Default is msgpack with zstd and no encryption.
func Default() *Serializer {
	s, _ := New(Options{Codec: MsgPack(), Compression: CompressionZstd})
	return s
}

// CodecByName returns the codec called name; "" means msgpack.
func CodecByName(name string) (Codec, error) {
	switch name {
	case "", "msgpack":
		return MsgPack(), nil
	case "json":
		return JSON(), nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownCodec, name)
}

// ParseKey decodes a hex encryption key. "" means no encryption.
func ParseKey(s string) ([]byte, error) {
	if s == "" {
		return nil, nil
	}
	key, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadKey, err)
	}
	switch len(key) {
	case 16, 24, 32:
		return key, nil
	}
	return nil, ErrBadKey
}

// Serialize encodes v into a blob.
func (s *Serializer) Serialize(v any) ([]byte, error) {
	payload, err := s.opts.Codec.Encode(v)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", s.opts.Codec.Name(), err)
	}
	cb, _ := codecByte(s.opts.Codec)
	zb, _ := compressionByte(s.opts.Compression)
	payload, err = s.compress(zb, payload)
	if err != nil {
		return nil, fmt.Errorf("compress %s: %w", s.opts.Compression, err)
	}
	blob := append([]byte{cb, zb}, payload...)
	if len(s.opts.EncryptKey) > 0 {
		if blob, err = s.seal(blob); err != nil {
			return nil, fmt.Errorf("encrypt: %w", err)
		}
	}
	return blob, nil
}

// Deserialize decodes a blob produced by any Serializer sharing the key.
func (s *Serializer) Deserialize(blob []byte, v any) error {
	var err error
	if len(s.opts.EncryptKey) > 0 {
		if blob, err = s.open(blob); err != nil {
			return fmt.Errorf("decrypt: %w", err)
		}
	}
	if len(blob) < 2 {
		return ErrShortBlob
	}
	codec, err := codecFor(blob[0])
	if err != nil {
		return err
	}
	payload, err := s.decompress(blob[1], blob[2:])
	if err != nil {
		return fmt.Errorf("decompress: %w", err)
	}
	if err := codec.Decode(payload, v); err != nil {
		return fmt.Errorf("decode %s: %w", codec.Name(), err)
	}
	return nil
}

func (s *Serializer) compress(kind byte, data []byte) ([]byte, error) {
	switch kind {
	case compGzip:
		var buf bytes.Buffer
		w := gzip.NewWriter(&buf)
		if _, err := w.Write(data); err != nil {
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	case compZstd:
		enc, _, err := s.zstd()
		if err != nil {
			return nil, err
		}
		return enc.EncodeAll(data, nil), nil
	}
	return data, nil
}

func (s *Serializer) decompress(kind byte, data []byte) ([]byte, error) {
	switch kind {
	case compNone:
		return data, nil
	case compGzip:
		r, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		defer r.Close()
		return io.ReadAll(r)
	case compZstd:
		_, dec, err := s.zstd()
		if err != nil {
			return nil, err
		}
		return dec.DecodeAll(data, nil)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownCompressor, kind)
}

// zstd lazily builds one encoder/decoder pair; both are safe for
// concurrent EncodeAll/DecodeAll.
func (s *Serializer) zstd() (*zstd.Encoder, *zstd.Decoder, error) {
	s.zstdOnce.Do(func() {
		s.zenc, s.zerr = zstd.NewWriter(nil)
		if s.zerr != nil {
			return
		}
		s.zdec, s.zerr = zstd.NewReader(nil)
	})
	return s.zenc, s.zdec, s.zerr
}

func (s *Serializer) seal(data []byte) ([]byte, error) {
	gcm, err := s.gcm()
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return gcm.Seal(nonce, nonce, data, nil), nil
}

func (s *Serializer) open(data []byte) ([]byte, error) {
	gcm, err := s.gcm()
	if err != nil {
		return nil, err
	}
	n := gcm.NonceSize()
	if len(data) < n {
		return nil, ErrShortBlob
	}
	return gcm.Open(nil, data[:n], data[n:], nil)
}

func (s *Serializer) gcm() (cipher.AEAD, error) {
	block, err := aes.NewCipher(s.opts.EncryptKey)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

func codecByte(c Codec) (byte, error) {
	switch c.Name() {
	case "json":
		return codecJSON, nil
	case "msgpack":
		return codecMsgPack, nil
	}
	return 0, fmt.Errorf("%w: %s", ErrUnknownCodec, c.Name())
}

func codecFor(b byte) (Codec, error) {
	switch b {
	case codecJSON:
		return JSON(), nil
	case codecMsgPack:
		return MsgPack(), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownCodec, b)
}

func compressionByte(c CompressionType) (byte, error) {
	switch c {
	case CompressionNone:
		return compNone, nil
	case CompressionGzip:
		return compGzip, nil
	case CompressionZstd:
		return compZstd, nil
	}
	return 0, fmt.Errorf("%w: %s", ErrUnknownCompressor, c)
}

type jsonCodec struct{}

func (jsonCodec) Encode(v any) ([]byte, error)    { return json.Marshal(v) }
func (jsonCodec) Decode(data []byte, v any) error { return json.Unmarshal(data, v) }
func (jsonCodec) Name() string                    { return "json" }

type msgpackCodec struct{}

func (msgpackCodec) Encode(v any) ([]byte, error)    { return msgpack.Marshal(v) }
func (msgpackCodec) Decode(data []byte, v any) error { return msgpack.Unmarshal(data, v) }
func (msgpackCodec) Name() string                    { return "msgpack" }

// JSON returns the JSON codec.
func JSON() Codec { return jsonCodec{} }

// MsgPack returns the MessagePack codec.
func MsgPack() Codec { return msgpackCodec{} }
