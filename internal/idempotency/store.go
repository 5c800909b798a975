package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"
)

const DefaultTTL = 24 * time.Hour

type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
)

// ReservationState is the outcome of reserving a key.
type ReservationState int

const (
	// ReservationStateNew means the caller owns the key and should process the request.
	ReservationStateNew ReservationState = iota
	// ReservationStateCompleted means a stored response should be replayed.
	ReservationStateCompleted
	// ReservationStatePending means another request holds the key.
	ReservationStatePending
)

type Reservation struct {
	State  ReservationState
	Record Record
}

type Record struct {
	Key          string    `json:"key"`
	Fingerprint  string    `json:"fingerprint"`
	Status       Status    `json:"status"`
	StatusCode   int       `json:"statusCode,omitempty"`
	ContentType  string    `json:"contentType,omitempty"`
	ResponseBody []byte    `json:"body,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

type Response struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

// Store persists reservations and the responses replayed for them.
type Store interface {
	Reserve(ctx context.Context, key, fingerprint string, now time.Time, ttl time.Duration) (Reservation, error)
	SaveResponse(ctx context.Context, key, fingerprint string, resp Response, now time.Time, ttl time.Duration) error
	Release(ctx context.Context, key, fingerprint string) error
}

var ErrFingerprintMismatch = errors.New("idempotency: key reused with a different request")

func storageKey(key string) string {
	return sha256Hex([]byte(strings.TrimSpace(key)))
}

func sha256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Fingerprint identifies a request by method, path, caller, and body.
func Fingerprint(method, path, identity string, body []byte) string {
	h := sha256.New()
	for _, part := range []string{strings.ToUpper(method), path, identity} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

func ttlOrDefault(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return DefaultTTL
	}
	return ttl
}

func pending(key, fingerprint string, now time.Time, ttl time.Duration) Record {
	return Record{
		Key:         key,
		Fingerprint: fingerprint,
		Status:      StatusPending,
		CreatedAt:   now,
		ExpiresAt:   now.Add(ttl),
	}
}

// resolve reports what a live record means for a caller presenting fingerprint.
func resolve(existing Record, fingerprint string) (Reservation, error) {
	if existing.Fingerprint != fingerprint {
		return Reservation{}, ErrFingerprintMismatch
	}
	if existing.Status == StatusCompleted {
		return Reservation{State: ReservationStateCompleted, Record: existing}, nil
	}
	return Reservation{State: ReservationStatePending, Record: existing}, nil
}

func completed(key, fingerprint string, resp Response, created, now time.Time, ttl time.Duration) Record {
	if created.IsZero() {
		created = now
	}
	return Record{
		Key:          key,
		Fingerprint:  fingerprint,
		Status:       StatusCompleted,
		StatusCode:   resp.StatusCode,
		ContentType:  resp.ContentType,
		ResponseBody: append([]byte(nil), resp.Body...),
		CreatedAt:    created,
		ExpiresAt:    now.Add(ttl),
	}
}
