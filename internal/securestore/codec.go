package securestore

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"campus-portal-service/internal/domain"
)

// Record is the envelope written for every stored value. Hash covers the
// serialized value and the timestamp, so any edit to either is detected.
type Record struct {
	Value     json.RawMessage `json:"value"`
	Timestamp int64           `json:"timestamp"` // unix milliseconds
	Hash      string          `json:"hash"`
}

// Created returns the record creation time.
func (r Record) Created() time.Time { return time.UnixMilli(r.Timestamp) }

// Expired reports whether the record is older than maxAge at now.
// A non-positive maxAge never expires.
func (r Record) Expired(now time.Time, maxAge time.Duration) bool {
	if maxAge <= 0 {
		return false
	}
	return now.Sub(r.Created()) > maxAge
}

// Encode wraps value in a hashed Record and obscures it for storage.
// The obscuring step is a reversible encoding, not encryption.
func Encode(value any, now time.Time) (string, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return "", fmt.Errorf("serialize value: %w", err)
	}
	ts := now.UnixMilli()
	rec := Record{Value: raw, Timestamp: ts, Hash: contentHash(raw, ts)}
	envelope, err := json.Marshal(rec)
	if err != nil {
		return "", fmt.Errorf("serialize record: %w", err)
	}
	return obscure(envelope), nil
}

// Decode reverses Encode and checks the integrity hash.
func Decode(opaque string) (Record, error) {
	envelope, err := reveal(opaque)
	if err != nil {
		return Record{}, fmt.Errorf("%w: %v", domain.ErrStorageCorrupt, err)
	}
	var rec Record
	if err := json.Unmarshal(envelope, &rec); err != nil {
		return Record{}, fmt.Errorf("%w: %v", domain.ErrStorageCorrupt, err)
	}
	if len(rec.Value) == 0 || rec.Hash != contentHash(rec.Value, rec.Timestamp) {
		return Record{}, fmt.Errorf("%w: hash mismatch", domain.ErrStorageCorrupt)
	}
	return rec, nil
}

// DecodeValue decodes opaque into out, ignoring age.
func DecodeValue(opaque string, out any) error {
	rec, err := Decode(opaque)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(rec.Value, out); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStorageCorrupt, err)
	}
	return nil
}

func contentHash(value []byte, ts int64) string {
	h := sha256.New()
	h.Write(value)
	h.Write([]byte(strconv.FormatInt(ts, 10)))
	return hex.EncodeToString(h.Sum(nil))
}

func obscure(b []byte) string {
	return base64.RawURLEncoding.EncodeToString(b)
}

func reveal(s string) ([]byte, error) {
	return base64.RawURLEncoding.DecodeString(s)
}
