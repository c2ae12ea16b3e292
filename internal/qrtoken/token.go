// Package qrtoken issues and verifies the short-lived signed tokens shown as
// attendance QR codes. Signing and verification happen only in the server
// process; clients render and forward tokens without ever holding the key.
package qrtoken

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"campus-portal-service/internal/clock"
	"campus-portal-service/internal/domain"
	"github.com/google/uuid"
)

// DefaultValidity is how long a token stays scannable.
const DefaultValidity = 60 * time.Second

// Issuer produces signed payloads and their encoded tokens for a course.
type Issuer interface {
	Issue(ctx context.Context, courseID string) (domain.QRPayload, string, error)
}

// Signer holds the shared secret. It is read-only after construction.
type Signer struct {
	key      []byte
	clock    clock.Clock
	newID    func() string
	validity time.Duration
}

type SignerOption func(*Signer)

func WithClock(c clock.Clock) SignerOption {
	return func(s *Signer) { s.clock = c }
}

func WithIDFunc(f func() string) SignerOption {
	return func(s *Signer) { s.newID = f }
}

func WithValidity(d time.Duration) SignerOption {
	return func(s *Signer) {
		if d > 0 {
			s.validity = d
		}
	}
}

// NewSigner imports secret as an HMAC-SHA256 key.
func NewSigner(secret string, opts ...SignerOption) (*Signer, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, fmt.Errorf("%w: empty signing key", domain.ErrSigningFailed)
	}
	s := &Signer{
		key:      []byte(secret),
		clock:    clock.Real{},
		newID:    func() string { return uuid.NewString() },
		validity: DefaultValidity,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Validity returns the token lifetime.
func (s *Signer) Validity() time.Duration { return s.validity }

// Issue builds and signs a fresh payload for courseID.
func (s *Signer) Issue(ctx context.Context, courseID string) (domain.QRPayload, string, error) {
	if err := ctx.Err(); err != nil {
		return domain.QRPayload{}, "", fmt.Errorf("%w: %v", domain.ErrSigningFailed, err)
	}
	if strings.TrimSpace(courseID) == "" {
		return domain.QRPayload{}, "", fmt.Errorf("%w: empty course id", domain.ErrSigningFailed)
	}
	now := s.clock.Now().UnixMilli()
	payload := domain.QRPayload{
		CourseID:  courseID,
		SessionID: s.newID(),
		Timestamp: now,
		ExpiresAt: now + s.validity.Milliseconds(),
		Nonce:     s.newID(),
	}
	sig, err := s.sign(payload)
	if err != nil {
		return domain.QRPayload{}, "", err
	}
	payload.Signature = sig

	body, err := json.Marshal(payload)
	if err != nil {
		return domain.QRPayload{}, "", fmt.Errorf("%w: %v", domain.ErrSigningFailed, err)
	}
	return payload, base64.StdEncoding.EncodeToString(body), nil
}

// GeneratePayload returns only the encoded token.
func (s *Signer) GeneratePayload(ctx context.Context, courseID string) (string, error) {
	_, token, err := s.Issue(ctx, courseID)
	return token, err
}

// Verify runs every check on a scanned token: format, signature, expiry and
// course, in that order.
func (s *Signer) Verify(token, expectedCourseID string) (domain.QRPayload, error) {
	payload, err := Decode(token)
	if err != nil {
		return domain.QRPayload{}, err
	}
	want, err := s.sign(payload)
	if err != nil {
		return domain.QRPayload{}, err
	}
	if !hmac.Equal([]byte(want), []byte(payload.Signature)) {
		return domain.QRPayload{}, domain.ErrInvalidSignature
	}
	if err := Validate(payload, expectedCourseID, s.clock.Now()); err != nil {
		return domain.QRPayload{}, err
	}
	return payload, nil
}

func (s *Signer) sign(p domain.QRPayload) (string, error) {
	msg, err := canonical(p)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrSigningFailed, err)
	}
	mac := hmac.New(sha256.New, s.key)
	mac.Write(msg)
	return hex.EncodeToString(mac.Sum(nil)), nil
}

// canonical is the signed message: every payload field except the signature,
// in fixed order.
func canonical(p domain.QRPayload) ([]byte, error) {
	return json.Marshal(struct {
		CourseID  string `json:"courseId"`
		SessionID string `json:"sessionId"`
		Timestamp int64  `json:"timestamp"`
		ExpiresAt int64  `json:"expiresAt"`
		Nonce     string `json:"nonce"`
	}{p.CourseID, p.SessionID, p.Timestamp, p.ExpiresAt, p.Nonce})
}

// Decode parses a token without checking the signature.
func Decode(token string) (domain.QRPayload, error) {
	body, err := base64.StdEncoding.DecodeString(strings.TrimSpace(token))
	if err != nil {
		return domain.QRPayload{}, fmt.Errorf("%w: %v", domain.ErrInvalidFormat, err)
	}
	var p domain.QRPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return domain.QRPayload{}, fmt.Errorf("%w: %v", domain.ErrInvalidFormat, err)
	}
	switch {
	case p.CourseID == "", p.SessionID == "", p.Nonce == "", p.Signature == "":
		return domain.QRPayload{}, fmt.Errorf("%w: missing fields", domain.ErrInvalidFormat)
	case p.Timestamp <= 0 || p.ExpiresAt < p.Timestamp:
		return domain.QRPayload{}, fmt.Errorf("%w: bad timestamps", domain.ErrInvalidFormat)
	}
	return p, nil
}

// Validate applies the expiry and course checks at now.
func Validate(p domain.QRPayload, expectedCourseID string, now time.Time) error {
	if now.UnixMilli() > p.ExpiresAt {
		return domain.ErrExpired
	}
	if p.CourseID != expectedCourseID {
		return domain.ErrCourseMismatch
	}
	return nil
}

// SecondsLeft is the whole seconds until p expires at now, floored at zero.
func SecondsLeft(p domain.QRPayload, now time.Time) int {
	ms := p.ExpiresAt - now.UnixMilli()
	if ms <= 0 {
		return 0
	}
	return int((ms + 999) / 1000)
}
