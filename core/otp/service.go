package otp

import (
	"context"
	"crypto/subtle"
	"fmt"
	"net/mail"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"

	"github.com/trezcool/hocsinh/core"
)

var (
	// errors
	ErrMissingFields      = errors.New("Vui lòng nhập đầy đủ thông tin")
	ErrInvalidCredentials = errors.New("Email hoặc mật khẩu không đúng")
	ErrNotAllowed         = errors.New("Email không được phép")
	ErrTooManyRequests    = errors.New("Quá nhiều yêu cầu, vui lòng thử lại sau")
)

const otpTemplate = "otp"

// Accounts maps admin e-mails to a plain password or a bcrypt hash.
type Accounts map[string]string

// ParseAccounts reads `email:password[,email:password...]`. Malformed pairs are skipped.
func ParseAccounts(raw string) Accounts {
	accounts := make(Accounts)
	for _, pair := range strings.Split(raw, ",") {
		parts := strings.SplitN(pair, ":", 2)
		if len(parts) != 2 {
			continue
		}
		email := core.CleanString(parts[0], true /* lower */)
		secret := strings.TrimSpace(parts[1])
		if email == "" || secret == "" {
			continue
		}
		accounts[email] = secret
	}
	return accounts
}

func (a Accounts) Has(email string) bool {
	_, ok := a[email]
	return ok
}

// Check compares `password` to the secret of `email`.
func (a Accounts) Check(email, password string) bool {
	secret, ok := a[email]
	if !ok {
		return false
	}
	if strings.HasPrefix(secret, "$2") {
		return bcrypt.CompareHashAndPassword([]byte(secret), []byte(password)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(secret), []byte(password)) == 1
}

// Delivery tells how an issued code reached the admin.
type Delivery struct {
	Email    string
	Fallback bool   // the code was only logged to the console
	DebugOTP string // set on fallback when debug codes may be shown
}

type (
	Service interface {
		// Login checks the credentials then issues and delivers a code.
		Login(ctx context.Context, email, password string) (Delivery, error)
		// Resend issues and delivers a new code to a known admin.
		Resend(ctx context.Context, email string) (Delivery, error)
		Verify(ctx context.Context, email, code string) (Session, error)
	}

	service struct {
		gate          *Gate
		accounts      Accounts
		mailSvc       core.EmailService
		conf          *core.Config
		logger        core.Logger
		issueLimiter  *keyedLimiter
		verifyLimiter *keyedLimiter
	}
)

var _ Service = (*service)(nil) // interface compliance check

func NewService(gate *Gate, mailSvc core.EmailService, conf *core.Config, logger core.Logger) *service {
	return &service{
		gate:          gate,
		accounts:      ParseAccounts(conf.OTP.AdminRaw),
		mailSvc:       mailSvc,
		conf:          conf,
		logger:        logger,
		issueLimiter:  newKeyedLimiter(conf.OTP.VerifyRate*5, conf.OTP.VerifyBurst),
		verifyLimiter: newKeyedLimiter(conf.OTP.VerifyRate, conf.OTP.VerifyBurst),
	}
}

func (svc *service) Login(ctx context.Context, email, password string) (Delivery, error) {
	email = core.CleanString(email, true /* lower */)
	if email == "" || password == "" {
		return Delivery{}, ErrMissingFields
	}
	if !svc.accounts.Check(email, password) {
		return Delivery{}, ErrInvalidCredentials
	}
	return svc.issue(ctx, email)
}

func (svc *service) Resend(ctx context.Context, email string) (Delivery, error) {
	email = core.CleanString(email, true /* lower */)
	if email == "" {
		return Delivery{}, ErrMissingFields
	}
	if !svc.accounts.Has(email) {
		return Delivery{}, ErrNotAllowed
	}
	return svc.issue(ctx, email)
}

func (svc *service) issue(ctx context.Context, email string) (Delivery, error) {
	if !svc.issueLimiter.Allow(email) {
		return Delivery{}, ErrTooManyRequests
	}
	e, err := svc.gate.Issue(ctx, email, PurposeAdminLogin)
	if err != nil {
		return Delivery{}, err
	}

	d := Delivery{Email: email}
	if svc.conf.OTP.Debug {
		svc.logger.Info(fmt.Sprintf("OTP for %s: %s (valid for %v)", email, e.Code, svc.conf.OTP.TTL))
	}
	sent := !svc.conf.OTP.ForceConsole && svc.send(e)
	if !sent || svc.conf.Email.Backend == "console" {
		d.Fallback = true
		if svc.conf.OTP.Debug {
			d.DebugOTP = e.Code
		}
	}
	return d, nil
}

// send delivers the code by e-mail and reports whether it went through.
func (svc *service) send(e Entry) bool {
	msg := &core.EmailMessage{
		To:           []mail.Address{{Address: e.Email}},
		Subject:      "Mã OTP Admin",
		TemplateName: otpTemplate,
		TemplateData: map[string]interface{}{
			"Code":    e.Code,
			"Minutes": int(svc.conf.OTP.TTL.Minutes()),
		},
	}
	if err := svc.mailSvc.SendMessage(msg); err != nil {
		svc.logger.Warn("sending OTP email failed, falling back to console", err)
		return false
	}
	return true
}

func (svc *service) Verify(ctx context.Context, email, code string) (Session, error) {
	email = core.CleanString(email, true /* lower */)
	code = core.CleanString(code)
	if email == "" || code == "" {
		return Session{}, ErrMissingFields
	}
	if !svc.verifyLimiter.Allow(email) {
		return Session{}, ErrTooManyRequests
	}
	return svc.gate.Verify(ctx, email, PurposeAdminLogin, code)
}
