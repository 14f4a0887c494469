// Package otp issues and verifies one-time passcodes sent to phones.
package otp

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/rs/zerolog"
)

// ErrNotFound is returned by stores when no live code exists for a phone.
var ErrNotFound = errors.New("otp: no active code")

// Provider is the send/verify contract the auth endpoints depend on.
type Provider interface {
	Send(ctx context.Context, phone string) error
	Verify(ctx context.Context, phone, code string) (bool, error)
}

// CodeSender delivers a generated code to the phone's owner.
type CodeSender interface {
	SendCode(ctx context.Context, phone, code string, ttl time.Duration) error
}

// Entry is a stored code and the number of failed attempts against it.
type Entry struct {
	Code     string
	Attempts int
}

// Store keeps codes keyed by phone. Implementations expire entries after
// the TTL given to Save.
type Store interface {
	Save(ctx context.Context, phone, code string, ttl time.Duration) error
	Get(ctx context.Context, phone string) (Entry, error)
	IncrAttempts(ctx context.Context, phone string) (int, error)
	Delete(ctx context.Context, phone string) error
	MarkVerified(ctx context.Context, phone string, ttl time.Duration) error
	ConsumeVerified(ctx context.Context, phone string) (bool, error)
}

type Config struct {
	Length      int
	TTL         time.Duration
	MaxAttempts int
}

// Manager implements Provider on top of a Store and a CodeSender.
type Manager struct {
	store    Store
	sender   CodeSender
	cfg      Config
	logger   zerolog.Logger
	generate func(length int) (string, error)
}

func NewManager(store Store, sender CodeSender, cfg Config, logger zerolog.Logger) *Manager {
	if cfg.Length <= 0 {
		cfg.Length = 6
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 2 * time.Minute
	}
	return &Manager{store: store, sender: sender, cfg: cfg, logger: logger, generate: generateCode}
}

// TTL is how long a sent code, and a successful verification, stay valid.
func (m *Manager) TTL() time.Duration { return m.cfg.TTL }

// Send replaces any live code for phone with a fresh one and delivers it.
func (m *Manager) Send(ctx context.Context, phone string) error {
	code, err := m.generate(m.cfg.Length)
	if err != nil {
		return fmt.Errorf("generate otp: %w", err)
	}
	if err := m.store.Save(ctx, phone, code, m.cfg.TTL); err != nil {
		return fmt.Errorf("store otp: %w", err)
	}
	if err := m.sender.SendCode(ctx, phone, code, m.cfg.TTL); err != nil {
		if delErr := m.store.Delete(ctx, phone); delErr != nil {
			m.logger.Warn().Err(delErr).Msg("failed to discard undelivered otp")
		}
		return fmt.Errorf("deliver otp: %w", err)
	}
	m.logger.Info().Str("phone", maskPhone(phone)).Msg("otp sent")
	return nil
}

// Verify checks code against the live code for phone. A match consumes the
// code and marks the phone verified for the TTL. Failed attempts count
// towards MaxAttempts, after which the code is discarded.
func (m *Manager) Verify(ctx context.Context, phone, code string) (bool, error) {
	entry, err := m.store.Get(ctx, phone)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load otp: %w", err)
	}

	if entry.Attempts >= m.cfg.MaxAttempts {
		return false, m.store.Delete(ctx, phone)
	}

	if subtle.ConstantTimeCompare([]byte(entry.Code), []byte(code)) == 1 {
		if err := m.store.Delete(ctx, phone); err != nil {
			return false, fmt.Errorf("consume otp: %w", err)
		}
		if err := m.store.MarkVerified(ctx, phone, m.cfg.TTL); err != nil {
			return false, fmt.Errorf("mark phone verified: %w", err)
		}
		return true, nil
	}

	attempts, err := m.store.IncrAttempts(ctx, phone)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("count otp attempt: %w", err)
	}
	if attempts >= m.cfg.MaxAttempts {
		m.logger.Warn().Str("phone", maskPhone(phone)).Msg("otp attempts exhausted")
		if err := m.store.Delete(ctx, phone); err != nil {
			return false, fmt.Errorf("discard otp: %w", err)
		}
	}
	return false, nil
}

// ConsumeVerification reports whether phone passed Verify within the TTL,
// and clears the mark so it can be used once.
func (m *Manager) ConsumeVerification(ctx context.Context, phone string) (bool, error) {
	return m.store.ConsumeVerified(ctx, phone)
}

func generateCode(length int) (string, error) {
	buf := make([]byte, length)
	ten := big.NewInt(10)
	for i := range buf {
		n, err := rand.Int(rand.Reader, ten)
		if err != nil {
			return "", err
		}
		buf[i] = byte('0' + n.Int64())
	}
	return string(buf), nil
}

func maskPhone(phone string) string {
	if len(phone) <= 4 {
		return "****"
	}
	return "****" + phone[len(phone)-4:]
}
