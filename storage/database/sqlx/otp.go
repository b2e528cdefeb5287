package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/hocsinh/core/otp"
	"github.com/trezcool/hocsinh/storage/database"
)

type otpRow struct {
	Email     string      `db:"email"`
	Purpose   string      `db:"purpose"`
	Code      string      `db:"code"`
	CreatedAt interface{} `db:"created_at"`
	ExpiresAt interface{} `db:"expires_at"`
}

// otpStore keeps codes in the otp_codes table so they survive restarts and are shared by instances.
type otpStore struct {
	db      *sqlx.DB
	dialect database.Dialect
}

var _ otp.Store = (*otpStore)(nil) // interface compliance check

func NewOTPStore(db *sqlx.DB, dialect database.Dialect) *otpStore {
	return &otpStore{db: db, dialect: dialect}
}

func (s otpStore) Put(ctx context.Context, e otp.Entry) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "starting transaction")
	}
	defer func() { _ = tx.Rollback() }()

	if _, err = tx.ExecContext(ctx, s.dialect.Rebind("DELETE FROM otp_codes WHERE email = ? AND purpose = ?"), e.Email, e.Purpose); err != nil {
		return errors.Wrap(err, "replacing code")
	}
	_, err = tx.ExecContext(ctx,
		s.dialect.Rebind("INSERT INTO otp_codes (email, purpose, code, created_at, expires_at) VALUES (?, ?, ?, ?, ?)"),
		e.Email, e.Purpose, e.Code, s.dialect.Timestamp(e.IssuedAt), s.dialect.Timestamp(e.ExpiresAt),
	)
	if err != nil {
		return errors.Wrap(err, "inserting code")
	}
	return errors.Wrap(tx.Commit(), "committing code")
}

func (s otpStore) Get(ctx context.Context, email, purpose string) (otp.Entry, error) {
	var row otpRow
	q := s.dialect.Rebind("SELECT email, purpose, code, created_at, expires_at FROM otp_codes WHERE email = ? AND purpose = ?")
	if err := s.db.GetContext(ctx, &row, q, email, purpose); err != nil {
		if err == sql.ErrNoRows {
			return otp.Entry{}, otp.ErrNotFound
		}
		return otp.Entry{}, errors.Wrap(err, "selecting code")
	}

	issued, ok1 := toTime(row.CreatedAt)
	expires, ok2 := toTime(row.ExpiresAt)
	if !ok1 || !ok2 {
		return otp.Entry{}, errors.New("unreadable code timestamps")
	}
	return otp.Entry{Email: row.Email, Purpose: row.Purpose, Code: row.Code, IssuedAt: issued, ExpiresAt: expires}, nil
}

func (s otpStore) Evict(ctx context.Context, email, purpose string) error {
	_, err := s.db.ExecContext(ctx, s.dialect.Rebind("DELETE FROM otp_codes WHERE email = ? AND purpose = ?"), email, purpose)
	return errors.Wrap(err, "evicting code")
}

func (s otpStore) Clear(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM otp_codes")
	return errors.Wrap(err, "clearing codes")
}

func toTime(v interface{}) (time.Time, bool) {
	switch t := parseTimestamp(v).(type) {
	case time.Time:
		return t, true
	case []byte:
		if ts, ok := parseTimestamp(string(t)).(time.Time); ok {
			return ts, true
		}
	}
	return time.Time{}, false
}
