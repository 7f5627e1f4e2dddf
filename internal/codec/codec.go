// Package codec encodes the placed-object collection into the self-describing
// envelope written to the local store, optionally zstd-compressed.
package codec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/klauspost/compress/zstd"

	"placekit/pkg/domain"
)

const (
	// Format identifies the envelope layout.
	Format = "placekit/placed-objects"
	// Version is the current envelope version.
	Version = 1
)

// zstd frame magic number, little endian 0xFD2FB528.
var zstdMagic = []byte{0x28, 0xB5, 0x2F, 0xFD}

// Envelope is the on-disk representation of the full collection.
type Envelope struct {
	Format     string                `json:"format"`
	Version    int                   `json:"version"`
	RecordType string                `json:"record_type"`
	SavedAt    time.Time             `json:"saved_at"`
	Objects    []domain.PlacedObject `json:"objects"`
}

// Options tunes encoding.
type Options struct {
	Compress bool
	// RecordType labels the envelope; empty means domain.RecordType.
	RecordType string
}

// Encode serializes the collection. Objects keep their order.
func Encode(objects []domain.PlacedObject, savedAt time.Time, opts Options) ([]byte, error) {
	if objects == nil {
		objects = []domain.PlacedObject{}
	}
	recordType := opts.RecordType
	if recordType == "" {
		recordType = domain.RecordType
	}
	env := Envelope{
		Format:     Format,
		Version:    Version,
		RecordType: recordType,
		SavedAt:    savedAt.UTC(),
		Objects:    objects,
	}
	raw, err := json.Marshal(env)
	if err != nil {
		return nil, &domain.SerializationError{Op: "encode envelope", Err: err}
	}
	if !opts.Compress {
		return raw, nil
	}
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, &domain.SerializationError{Op: "zstd writer", Err: err}
	}
	defer func() { _ = enc.Close() }()
	return enc.EncodeAll(raw, make([]byte, 0, len(raw)/2)), nil
}

// Decode parses a blob produced by Encode, compressed or not. Any structural
// problem, schema violation, or invalid record yields a *domain.SerializationError.
func Decode(blob []byte) (Envelope, error) {
	raw, err := decompress(blob)
	if err != nil {
		return Envelope{}, &domain.SerializationError{Op: "decompress envelope", Err: err}
	}
	if err := ValidateEnvelope(raw); err != nil {
		return Envelope{}, &domain.SerializationError{Op: "validate envelope", Err: err}
	}
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Envelope{}, &domain.SerializationError{Op: "decode envelope", Err: err}
	}
	if env.Version > Version {
		return Envelope{}, &domain.SerializationError{Op: "decode envelope", Err: fmt.Errorf("unsupported version %d", env.Version)}
	}
	seen := make(map[string]struct{}, len(env.Objects))
	for _, obj := range env.Objects {
		if err := obj.Validate(); err != nil {
			return Envelope{}, &domain.SerializationError{Op: "decode envelope", Err: err}
		}
		if _, dup := seen[obj.ID]; dup {
			return Envelope{}, &domain.SerializationError{Op: "decode envelope", Err: domain.DuplicateIDError{ID: obj.ID}}
		}
		seen[obj.ID] = struct{}{}
	}
	return env, nil
}

// Compressed reports whether blob starts with a zstd frame.
func Compressed(blob []byte) bool {
	return bytes.HasPrefix(blob, zstdMagic)
}

func decompress(blob []byte) ([]byte, error) {
	if !Compressed(blob) {
		return blob, nil
	}
	dec, err := zstd.NewReader(bytes.NewReader(blob))
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	return io.ReadAll(dec)
}
