package serializer

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"time"
)

// envelopeMetadata describes the payload it travels with. The checksum is
// hex SHA-256 over the post-compression payload bytes exactly as stored.
type envelopeMetadata struct {
	Format         Format      `json:"format"`
	Compression    Compression `json:"compression"`
	OriginalSize   int         `json:"original_size"`
	CompressedSize int         `json:"compressed_size"`
	Timestamp      time.Time   `json:"timestamp"`
	SchemaVersion  string      `json:"schema_version"`
	Checksum       string      `json:"checksum"`
}

// envelope is the self-describing on-disk form used when IncludeMetadata is
// set. Payload is base64 so the envelope stays valid JSON for every format.
type envelope struct {
	Metadata envelopeMetadata `json:"metadata"`
	Payload  string           `json:"payload"`
}

func newEnvelope(cfg Config, originalSize int, payload []byte) envelope {
	sum := sha256.Sum256(payload)
	return envelope{
		Metadata: envelopeMetadata{
			Format:         cfg.Format,
			Compression:    cfg.Compression,
			OriginalSize:   originalSize,
			CompressedSize: len(payload),
			Timestamp:      time.Now().UTC(),
			SchemaVersion:  SchemaVersion,
			Checksum:       hex.EncodeToString(sum[:]),
		},
		Payload: base64.StdEncoding.EncodeToString(payload),
	}
}

// verifiedPayload decodes the payload and rejects any checksum mismatch.
func (e *envelope) verifiedPayload() ([]byte, error) {
	payload, err := base64.StdEncoding.DecodeString(e.Payload)
	if err != nil {
		return nil, &CodecError{Op: "decode payload", Err: err}
	}

	sum := sha256.Sum256(payload)
	if hex.EncodeToString(sum[:]) != e.Metadata.Checksum {
		return nil, &ChecksumError{Expected: e.Metadata.Checksum, Actual: hex.EncodeToString(sum[:])}
	}
	return payload, nil
}
