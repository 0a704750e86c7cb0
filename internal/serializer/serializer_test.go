package serializer

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harborgrid-justin/phantom-spire-sub011/internal/models"
)

// sampleIOC uses a whole-second UTC timestamp so every wire format
// round-trips it without precision loss.
func sampleIOC() *models.IOC {
	return &models.IOC{
		ID:            "ioc-7f3a",
		IndicatorType: models.IOCTypeDomain,
		Value:         "malware-c2.example.net",
		Confidence:    0.92,
		Severity:      models.SeverityCritical,
		Source:        "dns-sinkhole",
		Timestamp:     time.Unix(1721470500, 0).UTC(),
		Tags:          []string{"c2", "apt"},
		Context: models.IOCContext{
			Geolocation: "NL",
			ASN:         "AS64496",
			Category:    "command-and-control",
		},
		RawData: []byte{0xde, 0xad, 0xbe, 0xef},
	}
}

func TestSerializer_RoundTrip(t *testing.T) {
	formats := []Format{FormatJSON, FormatMessagePack, FormatCBOR, FormatBSON}
	compressions := []Compression{CompressionNone, CompressionGzip}

	for _, format := range formats {
		for _, compression := range compressions {
			t.Run(string(format)+"_"+string(compression), func(t *testing.T) {
				s, err := New(Config{
					Format:          format,
					Compression:     compression,
					IncludeMetadata: true,
				})
				require.NoError(t, err)

				in := sampleIOC()
				data, err := s.Encode(in)
				require.NoError(t, err)

				var out models.IOC
				require.NoError(t, s.Decode(data, &out))
				assert.Equal(t, *in, out)
			})
		}
	}
}

func TestSerializer_UnsupportedConfigurations(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"bincode format", Config{Format: FormatBincode}},
		{"unknown format", Config{Format: "pickle"}},
		{"lz4 compression", Config{Format: FormatJSON, Compression: CompressionLz4}},
		{"zstd compression", Config{Format: FormatJSON, Compression: CompressionZstd}},
		{"brotli compression", Config{Format: FormatJSON, Compression: CompressionBrotli}},
		{"unknown compression", Config{Format: FormatJSON, Compression: "snappy"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := New(tt.cfg)

			assert.Nil(t, s)
			var unsupported *UnsupportedError
			assert.ErrorAs(t, err, &unsupported)
		})
	}
}

func TestSerializer_EnvelopeMetadata(t *testing.T) {
	s, err := New(Config{Format: FormatJSON, Compression: CompressionGzip, IncludeMetadata: true})
	require.NoError(t, err)

	data, err := s.Encode(sampleIOC())
	require.NoError(t, err)

	var env envelope
	require.NoError(t, json.Unmarshal(data, &env))
	assert.Equal(t, FormatJSON, env.Metadata.Format)
	assert.Equal(t, CompressionGzip, env.Metadata.Compression)
	assert.Equal(t, SchemaVersion, env.Metadata.SchemaVersion)
	assert.Greater(t, env.Metadata.OriginalSize, 0)
	assert.Greater(t, env.Metadata.CompressedSize, 0)
	assert.Len(t, env.Metadata.Checksum, 64) // hex SHA-256
}

func TestSerializer_ChecksumTamperDetected(t *testing.T) {
	s, err := New(Config{Format: FormatJSON, IncludeMetadata: true})
	require.NoError(t, err)

	data, err := s.Encode(sampleIOC())
	require.NoError(t, err)

	var env envelope
	require.NoError(t, json.Unmarshal(data, &env))
	env.Metadata.Checksum = "0000" + env.Metadata.Checksum[4:]
	tampered, err := json.Marshal(env)
	require.NoError(t, err)

	var out models.IOC
	err = s.Decode(tampered, &out)
	assert.Error(t, err)
	var mismatch *ChecksumError
	assert.ErrorAs(t, err, &mismatch)
	assert.Empty(t, out.ID, "decode must not touch the target on mismatch")
}

func TestSerializer_WithoutMetadataIsRawPayload(t *testing.T) {
	s, err := New(Config{Format: FormatJSON, IncludeMetadata: false})
	require.NoError(t, err)

	in := sampleIOC()
	data, err := s.Encode(in)
	require.NoError(t, err)

	// No envelope: the bytes are the plain JSON document.
	var direct models.IOC
	require.NoError(t, json.Unmarshal(data, &direct))
	assert.Equal(t, in.ID, direct.ID)

	var out models.IOC
	require.NoError(t, s.Decode(data, &out))
	assert.Equal(t, *in, out)
}

func TestSerializer_MaxSizeEnforced(t *testing.T) {
	s, err := New(Config{Format: FormatJSON, MaxSize: 16})
	require.NoError(t, err)

	_, err = s.Encode(sampleIOC())
	assert.Error(t, err)
	var tooBig *SizeError
	assert.ErrorAs(t, err, &tooBig)
}

func TestSerializer_GzipShrinksRepetitivePayloads(t *testing.T) {
	plain, err := New(Config{Format: FormatJSON, IncludeMetadata: false})
	require.NoError(t, err)
	gzipped, err := New(Config{Format: FormatJSON, Compression: CompressionGzip, IncludeMetadata: false})
	require.NoError(t, err)

	ioc := sampleIOC()
	for i := 0; i < 200; i++ {
		ioc.Tags = append(ioc.Tags, "repeated-tag-value")
	}

	raw, err := plain.Encode(ioc)
	require.NoError(t, err)
	compressed, err := gzipped.Encode(ioc)
	require.NoError(t, err)

	assert.Less(t, len(compressed), len(raw))
}
