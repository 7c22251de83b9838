// Package backup describes the checksummed artifact a migration writes before
// it touches the store.
package backup

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/go-faster/errors"
)

const ChecksumFormat = "sha256/hex"

var (
	ErrChecksumMismatch = errors.New("backup checksum mismatch")
	ErrNotFound         = errors.New("backup not found")
	ErrMalformed        = errors.New("malformed backup artifact")
)

// Artifact is the stored form of a backup. Payload is the compact JSON
// snapshot of every table and Checksum covers exactly those bytes.
type Artifact struct {
	ID             string          `json:"id"`
	Timestamp      time.Time       `json:"timestamp"`
	Checksum       string          `json:"checksum"`
	ChecksumFormat string          `json:"checksum_format"`
	Payload        json.RawMessage `json:"payload"`
}

// New builds an artifact for payload, computing its checksum.
func New(id string, at time.Time, payload []byte) *Artifact {
	return &Artifact{
		ID:             id,
		Timestamp:      at.UTC(),
		Checksum:       Checksum(payload),
		ChecksumFormat: ChecksumFormat,
		Payload:        json.RawMessage(payload),
	}
}

// Checksum returns the hex encoded sha256 of payload.
func Checksum(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

// Verify recomputes the payload checksum and compares it with the stored one.
func (a *Artifact) Verify() error {
	if a.ChecksumFormat != ChecksumFormat {
		return errors.Wrapf(ErrMalformed, "unsupported checksum format %q", a.ChecksumFormat)
	}
	if got := Checksum(a.Payload); got != a.Checksum {
		return errors.Wrapf(ErrChecksumMismatch, "backup %s: stored %s, computed %s", a.ID, a.Checksum, got)
	}
	return nil
}

// Marshal encodes v as compact JSON without HTML escaping, so payload bytes
// survive being embedded in an artifact unchanged.
func Marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// Encode serializes the artifact for storage.
func (a *Artifact) Encode() ([]byte, error) {
	raw, err := Marshal(a)
	if err != nil {
		return nil, errors.Wrap(err, "encode backup")
	}
	return raw, nil
}

// Decode parses a stored artifact without verifying it.
func Decode(raw []byte) (*Artifact, error) {
	var a Artifact
	if err := json.Unmarshal(raw, &a); err != nil {
		return nil, errors.Wrapf(ErrMalformed, "decode: %v", err)
	}
	if a.ID == "" || len(a.Payload) == 0 {
		return nil, errors.Wrap(ErrMalformed, "missing id or payload")
	}
	return &a, nil
}
