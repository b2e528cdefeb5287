package otp

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"math/big"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/hocsinh/core"
)

const PurposeAdminLogin = "admin_login"

var (
	// errors
	ErrNotFound = errors.New("Không tìm thấy mã OTP")
	ErrExpired  = errors.New("Mã OTP đã hết hạn")
	ErrMismatch = errors.New("Mã OTP không đúng")

	// NowFunc is mocked in tests.
	NowFunc = time.Now

	codeRange = big.NewInt(900000)
)

// Entry is an issued one-time code.
type Entry struct {
	Email     string
	Purpose   string
	Code      string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

func (e Entry) Expired(now time.Time) bool {
	return now.After(e.ExpiresAt)
}

// Store keeps at most one Entry per (email, purpose).
type Store interface {
	// Put replaces any entry of the same email and purpose.
	Put(ctx context.Context, e Entry) error
	// Get returns ErrNotFound when there is no entry.
	Get(ctx context.Context, email, purpose string) (Entry, error)
	Evict(ctx context.Context, email, purpose string) error
	Clear(ctx context.Context) error
}

// Session describes an authenticated admin.
type Session struct {
	Email     string
	LoginTime time.Time
	Expiry    time.Time
}

// Gate issues and verifies single-use codes.
type Gate struct {
	store      Store
	ttl        time.Duration
	sessionTTL time.Duration
}

func NewGate(store Store, ttl, sessionTTL time.Duration) *Gate {
	return &Gate{store: store, ttl: ttl, sessionTTL: sessionTTL}
}

// GenerateCode returns a uniformly random 6 digit code, never starting with 0.
func GenerateCode() (string, error) {
	n, err := rand.Int(rand.Reader, codeRange)
	if err != nil {
		return "", errors.Wrap(err, "generating code")
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}

// Issue creates a fresh code for `email`, replacing the previous one.
func (g *Gate) Issue(ctx context.Context, email, purpose string) (Entry, error) {
	code, err := GenerateCode()
	if err != nil {
		return Entry{}, err
	}
	now := NowFunc().UTC()
	e := Entry{
		Email:     core.CleanString(email, true /* lower */),
		Purpose:   purpose,
		Code:      code,
		IssuedAt:  now,
		ExpiresAt: now.Add(g.ttl),
	}
	if err = g.store.Put(ctx, e); err != nil {
		return Entry{}, errors.Wrap(err, "storing code")
	}
	return e, nil
}

// Verify consumes the code of `email`. Expired codes are evicted, wrong codes are kept.
func (g *Gate) Verify(ctx context.Context, email, purpose, code string) (Session, error) {
	email = core.CleanString(email, true /* lower */)
	e, err := g.store.Get(ctx, email, purpose)
	if err != nil {
		return Session{}, err
	}

	now := NowFunc().UTC()
	if e.Expired(now) {
		if err = g.store.Evict(ctx, email, purpose); err != nil {
			return Session{}, errors.Wrap(err, "evicting code")
		}
		return Session{}, ErrExpired
	}
	if subtle.ConstantTimeCompare([]byte(e.Code), []byte(core.CleanString(code))) != 1 {
		return Session{}, ErrMismatch
	}

	if err = g.store.Evict(ctx, email, purpose); err != nil {
		return Session{}, errors.Wrap(err, "evicting code")
	}
	return Session{Email: email, LoginTime: now, Expiry: now.Add(g.sessionTTL)}, nil
}
