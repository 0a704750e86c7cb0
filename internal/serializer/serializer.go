// Package serializer implements the format-agnostic encode/decode pipeline
// used by the file-, key- and document-oriented stores. A value is encoded
// with the configured format, optionally gzip-compressed, and optionally
// wrapped in a self-describing envelope carrying a SHA-256 checksum.
package serializer

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"
	"github.com/vmihailenco/msgpack/v5"
	"go.mongodb.org/mongo-driver/bson"
)

// Format names a wire encoding.
type Format string

const (
	FormatJSON        Format = "json"
	FormatMessagePack Format = "msgpack"
	FormatBincode     Format = "bincode"
	FormatCBOR        Format = "cbor"
	FormatBSON        Format = "bson"
)

// Compression names a payload compression algorithm.
type Compression string

const (
	CompressionNone   Compression = "none"
	CompressionGzip   Compression = "gzip"
	CompressionLz4    Compression = "lz4"
	CompressionZstd   Compression = "zstd"
	CompressionBrotli Compression = "brotli"
)

// SchemaVersion is stamped into every envelope.
const SchemaVersion = "1.0"

// Config selects the behaviour of one Serializer instance.
type Config struct {
	Format           Format
	Compression      Compression
	CompressionLevel int  // hint for the compressor; 0 means default
	PrettyPrint      bool // JSON only, ignored elsewhere
	IncludeMetadata  bool // wrap output in a checksummed envelope
	MaxSize          int  // enforced ceiling in bytes; 0 means unlimited
}

// DefaultConfig is a plain JSON pipeline with an integrity envelope.
func DefaultConfig() Config {
	return Config{
		Format:          FormatJSON,
		Compression:     CompressionNone,
		IncludeMetadata: true,
	}
}

// Serializer encodes and decodes domain objects for storage.
type Serializer struct {
	cfg Config
}

// New validates the configuration and returns a ready pipeline. Formats and
// compression algorithms the pipeline recognises but does not implement are
// rejected here, never mid-operation.
func New(cfg Config) (*Serializer, error) {
	switch cfg.Format {
	case FormatJSON, FormatMessagePack, FormatCBOR, FormatBSON:
	case FormatBincode:
		return nil, &UnsupportedError{What: fmt.Sprintf("format %q", cfg.Format)}
	default:
		return nil, &UnsupportedError{What: fmt.Sprintf("format %q", cfg.Format)}
	}

	switch cfg.Compression {
	case CompressionNone, CompressionGzip:
	case CompressionLz4, CompressionZstd, CompressionBrotli:
		return nil, &UnsupportedError{What: fmt.Sprintf("compression %q", cfg.Compression)}
	default:
		return nil, &UnsupportedError{What: fmt.Sprintf("compression %q", cfg.Compression)}
	}

	return &Serializer{cfg: cfg}, nil
}

// Config returns the pipeline configuration.
func (s *Serializer) Config() Config {
	return s.cfg
}

// Encode serialises v into bytes ready to be written to a backend.
func (s *Serializer) Encode(v any) ([]byte, error) {
	raw, err := s.marshal(v)
	if err != nil {
		return nil, &CodecError{Op: "encode", Err: err}
	}

	payload, err := s.compress(raw)
	if err != nil {
		return nil, &CodecError{Op: "compress", Err: err}
	}

	if s.cfg.MaxSize > 0 && len(payload) > s.cfg.MaxSize {
		return nil, &SizeError{Size: len(payload), Max: s.cfg.MaxSize}
	}

	if !s.cfg.IncludeMetadata {
		return payload, nil
	}

	env := newEnvelope(s.cfg, len(raw), payload)
	out, err := json.Marshal(env)
	if err != nil {
		return nil, &CodecError{Op: "encode envelope", Err: err}
	}
	if s.cfg.MaxSize > 0 && len(out) > s.cfg.MaxSize {
		return nil, &SizeError{Size: len(out), Max: s.cfg.MaxSize}
	}
	return out, nil
}

// Decode reverses Encode into v. When the pipeline writes envelopes the
// checksum is verified first and a mismatch fails without touching v.
func (s *Serializer) Decode(data []byte, v any) error {
	payload := data

	if s.cfg.IncludeMetadata {
		var env envelope
		if err := json.Unmarshal(data, &env); err != nil {
			return &CodecError{Op: "decode envelope", Err: err}
		}
		decoded, err := env.verifiedPayload()
		if err != nil {
			return err
		}
		payload = decoded
	}

	raw, err := s.decompress(payload)
	if err != nil {
		return &CodecError{Op: "decompress", Err: err}
	}

	if err := s.unmarshal(raw, v); err != nil {
		return &CodecError{Op: "decode", Err: err}
	}
	return nil
}

func (s *Serializer) marshal(v any) ([]byte, error) {
	switch s.cfg.Format {
	case FormatJSON:
		if s.cfg.PrettyPrint {
			return json.MarshalIndent(v, "", "  ")
		}
		return json.Marshal(v)
	case FormatMessagePack:
		return msgpack.Marshal(v)
	case FormatCBOR:
		return cbor.Marshal(v)
	case FormatBSON:
		return bson.Marshal(v)
	}
	return nil, fmt.Errorf("format %q not wired", s.cfg.Format)
}

func (s *Serializer) unmarshal(data []byte, v any) error {
	switch s.cfg.Format {
	case FormatJSON:
		return json.Unmarshal(data, v)
	case FormatMessagePack:
		return msgpack.Unmarshal(data, v)
	case FormatCBOR:
		return cbor.Unmarshal(data, v)
	case FormatBSON:
		return bson.Unmarshal(data, v)
	}
	return fmt.Errorf("format %q not wired", s.cfg.Format)
}

func (s *Serializer) compress(data []byte) ([]byte, error) {
	if s.cfg.Compression == CompressionNone {
		return data, nil
	}

	var buf bytes.Buffer
	level := gzip.DefaultCompression
	if s.cfg.CompressionLevel != 0 {
		level = s.cfg.CompressionLevel
	}
	w, err := gzip.NewWriterLevel(&buf, level)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (s *Serializer) decompress(data []byte) ([]byte, error) {
	if s.cfg.Compression == CompressionNone {
		return data, nil
	}

	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}
