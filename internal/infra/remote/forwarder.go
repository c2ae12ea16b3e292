package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"campus-portal-service/internal/domain"
	"github.com/cenkalti/backoff/v4"
)

// Forwarder posts attendance records to an external attendance endpoint.
type Forwarder struct {
	url     string
	client  *http.Client
	retries uint64
	backoff func() backoff.BackOff
}

type Option func(*Forwarder)

func WithHTTPClient(c *http.Client) Option {
	return func(f *Forwarder) { f.client = c }
}

// WithRetries sets how many times a failed post is retried.
func WithRetries(n int) Option {
	return func(f *Forwarder) {
		if n >= 0 {
			f.retries = uint64(n)
		}
	}
}

func WithBackOff(fn func() backoff.BackOff) Option {
	return func(f *Forwarder) { f.backoff = fn }
}

func NewForwarder(url string, opts ...Option) *Forwarder {
	f := &Forwarder{
		url:     url,
		client:  &http.Client{Timeout: 10 * time.Second},
		retries: 1,
		backoff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 200 * time.Millisecond
			b.MaxElapsedTime = 5 * time.Second
			return b
		},
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

type recordBody struct {
	CourseID  string `json:"courseId"`
	StudentID string `json:"studentId"`
	Timestamp string `json:"timestamp"`
}

// Record posts rec as JSON. 5xx responses and transport errors are retried;
// any other non-2xx status fails at once.
func (f *Forwarder) Record(ctx context.Context, rec domain.AttendanceRecord) error {
	body, err := json.Marshal(recordBody{
		CourseID:  rec.CourseID,
		StudentID: rec.StudentID,
		Timestamp: rec.Timestamp.UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return err
	}

	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.url, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")
		resp, err := f.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			return nil
		case resp.StatusCode >= 500:
			return fmt.Errorf("attendance endpoint: status %d", resp.StatusCode)
		default:
			return backoff.Permanent(fmt.Errorf("attendance endpoint: status %d", resp.StatusCode))
		}
	}

	b := backoff.WithContext(backoff.WithMaxRetries(f.backoff(), f.retries), ctx)
	return backoff.Retry(op, b)
}
