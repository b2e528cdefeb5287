package otp

import (
	"context"
	"log"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/trezcool/hocsinh/core"
	"github.com/trezcool/hocsinh/fs"
	"github.com/trezcool/hocsinh/services/email"
	"github.com/trezcool/hocsinh/services/logger"
)

func testConfig() *core.Config {
	conf := &core.Config{AppName: "Hocsinh", TestMode: true}
	conf.Email.Backend = "smtp"
	conf.Email.DefaultFromEmail = "noreply@test.vn"
	conf.OTP.TTL = 5 * time.Minute
	conf.OTP.AdminRaw = "admin@test.vn:secret, bad-pair ,boss@test.vn:"
	conf.OTP.VerifyRate = time.Millisecond
	conf.OTP.VerifyBurst = 100
	return conf
}

func newTestService(conf *core.Config, mailSvc core.EmailService) *service {
	logger := logsvc.NewRollbarLogger(log.New(os.Stdout, "TEST : ", 0), conf)
	logger.Enable(false)
	core.ParseEmailTemplates(appfs.FS, appfs.EmailTemplatesDir, conf, logger)
	gate := NewGate(NewMemoryStore(), conf.OTP.TTL, time.Hour)
	return NewService(gate, mailSvc, conf, logger)
}

func TestParseAccounts(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("hashed"), bcrypt.MinCost)
	require.NoError(t, err)

	accounts := ParseAccounts(" Admin@Test.vn :secret,nocolon,:x,b@test.vn:" + string(hash))
	assert.Len(t, accounts, 2)
	assert.True(t, accounts.Has("admin@test.vn"))
	assert.True(t, accounts.Check("admin@test.vn", "secret"))
	assert.False(t, accounts.Check("admin@test.vn", "Secret"))
	assert.True(t, accounts.Check("b@test.vn", "hashed"))
	assert.False(t, accounts.Check("b@test.vn", "other"))
	assert.False(t, accounts.Check("ghost@test.vn", "secret"))
}

func TestService_LoginAndVerify(t *testing.T) {
	ctx := context.Background()
	conf := testConfig()
	emailsvc.ResetSentMessages()
	svc := newTestService(conf, emailsvc.NewConsoleServiceMock(conf))

	tests := []struct {
		name     string
		email    string
		password string
		wantErr  error
	}{
		{name: "missing fields", email: "", password: "secret", wantErr: ErrMissingFields},
		{name: "wrong password", email: "admin@test.vn", password: "nope", wantErr: ErrInvalidCredentials},
		{name: "unknown admin", email: "x@test.vn", password: "secret", wantErr: ErrInvalidCredentials},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Login(ctx, tt.email, tt.password)
			assert.Equal(t, tt.wantErr, err)
		})
	}

	t.Run("delivered by email", func(t *testing.T) {
		d, err := svc.Login(ctx, " ADMIN@test.vn", "secret")
		require.NoError(t, err)
		assert.Equal(t, "admin@test.vn", d.Email)
		assert.False(t, d.Fallback)
		assert.Empty(t, d.DebugOTP)

		msg, ok := emailsvc.LastSentMessage()
		require.True(t, ok)
		require.Len(t, msg.To, 1)
		assert.Equal(t, "admin@test.vn", msg.To[0].Address)
		data, ok := msg.TemplateData.(map[string]interface{})
		require.True(t, ok)
		code, _ := data["Code"].(string)
		require.Len(t, code, 6)

		sess, err := svc.Verify(ctx, "admin@test.vn", code)
		require.NoError(t, err)
		assert.Equal(t, "admin@test.vn", sess.Email)
	})
}

func TestService_Fallback(t *testing.T) {
	ctx := context.Background()

	t.Run("failing mail server", func(t *testing.T) {
		conf := testConfig()
		conf.OTP.Debug = true
		svc := newTestService(conf, emailsvc.NewFailingServiceMock(conf))

		d, err := svc.Login(ctx, "admin@test.vn", "secret")
		require.NoError(t, err)
		assert.True(t, d.Fallback)
		require.Len(t, d.DebugOTP, 6)

		_, err = svc.Verify(ctx, "admin@test.vn", d.DebugOTP)
		assert.NoError(t, err)
	})

	t.Run("forced console without debug codes", func(t *testing.T) {
		conf := testConfig()
		conf.OTP.ForceConsole = true
		svc := newTestService(conf, emailsvc.NewConsoleServiceMock(conf))

		d, err := svc.Login(ctx, "admin@test.vn", "secret")
		require.NoError(t, err)
		assert.True(t, d.Fallback)
		assert.Empty(t, d.DebugOTP)
	})
}

func TestService_Resend(t *testing.T) {
	ctx := context.Background()
	conf := testConfig()
	svc := newTestService(conf, emailsvc.NewConsoleServiceMock(conf))

	_, err := svc.Resend(ctx, "")
	assert.Equal(t, ErrMissingFields, err)
	_, err = svc.Resend(ctx, "stranger@test.vn")
	assert.Equal(t, ErrNotAllowed, err)
	_, err = svc.Resend(ctx, "admin@test.vn")
	assert.NoError(t, err)
}

func TestService_RateLimit(t *testing.T) {
	ctx := context.Background()
	conf := testConfig()
	conf.OTP.VerifyRate = time.Hour
	conf.OTP.VerifyBurst = 2
	svc := newTestService(conf, emailsvc.NewConsoleServiceMock(conf))

	for i := 0; i < 2; i++ {
		_, err := svc.Verify(ctx, "admin@test.vn", "123456")
		assert.NotEqual(t, ErrTooManyRequests, err)
	}
	_, err := svc.Verify(ctx, "admin@test.vn", "123456")
	assert.Equal(t, ErrTooManyRequests, err)
}
