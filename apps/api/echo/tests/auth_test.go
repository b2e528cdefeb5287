package tests

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/trezcool/hocsinh/apps/api/echo"
	"github.com/trezcool/hocsinh/core"
)

func login(t *testing.T, app testApp, email, password string) DeliveryResponse {
	body := marchallObj(t, LoginRequest{Email: email, Password: password})
	req, rec := newRequest(http.MethodPost, "/api/admin-login", body)
	app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := unmarchallObj(t, rec.Body.Bytes())
	d := DeliveryResponse{Success: resp["success"] == true, Fallback: resp["fallback"] == true}
	d.Message, _ = resp["message"].(string)
	d.Email, _ = resp["email"].(string)
	d.DebugOTP, _ = resp["debug_otp"].(string)
	return d
}

func Test_authApi_login(t *testing.T) {
	app := setup(t)

	tests := []httpTest{
		{
			name:     "missing fields",
			body:     marchallObj(t, LoginRequest{Email: adminEmail}),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: "Vui lòng nhập đầy đủ thông tin"}),
		},
		{
			name:     "wrong password",
			body:     marchallObj(t, LoginRequest{Email: adminEmail, Password: "nope"}),
			wantCode: http.StatusUnauthorized,
			wantData: marchallObj(t, httpErr{Error: "Email hoặc mật khẩu không đúng"}),
		},
		{
			name:     "unknown admin",
			body:     marchallObj(t, LoginRequest{Email: "x@test.vn", Password: adminPassword}),
			wantCode: http.StatusUnauthorized,
			wantData: marchallObj(t, httpErr{Error: "Email hoặc mật khẩu không đúng"}),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newRequest(http.MethodPost, "/api/admin-login", tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}

	t.Run("console fallback shows the code", func(t *testing.T) {
		d := login(t, app, " Admin@Test.vn ", adminPassword)
		assert.True(t, d.Success)
		assert.True(t, d.Fallback)
		assert.Equal(t, adminEmail, d.Email)
		assert.Equal(t, "Mã OTP được hiển thị trong console và giao diện", d.Message)
		assert.Len(t, d.DebugOTP, 6)
	})

	t.Run("no debug code when debug is off", func(t *testing.T) {
		app := setup(t, func(conf *core.Config) { conf.OTP.Debug = false })
		d := login(t, app, adminEmail, adminPassword)
		assert.True(t, d.Fallback)
		assert.Empty(t, d.DebugOTP)
	})

	t.Run("delivered by email", func(t *testing.T) {
		app := setup(t, func(conf *core.Config) { conf.Email.Backend = "smtp" })
		d := login(t, app, adminEmail, adminPassword)
		assert.False(t, d.Fallback)
		assert.Empty(t, d.DebugOTP)
		assert.Equal(t, "Mã OTP đã được gửi đến email của bạn. Kiểm tra cả thư mục spam.", d.Message)
	})
}

func Test_authApi_verify(t *testing.T) {
	app := setup(t)

	t.Run("no code issued", func(t *testing.T) {
		tt := httpTest{
			body:     marchallObj(t, VerifyRequest{Email: adminEmail, OTP: "123456"}),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: "Không tìm thấy mã OTP"}),
		}
		req, rec := newRequest(http.MethodPost, "/api/verify-otp", tt.body)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, tt, rec)
	})

	code := login(t, app, adminEmail, adminPassword).DebugOTP
	wrong := "100000"
	if code == wrong {
		wrong = "100001"
	}

	tests := []httpTest{
		{
			name:     "missing code",
			body:     marchallObj(t, VerifyRequest{Email: adminEmail}),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: "Vui lòng nhập đầy đủ thông tin"}),
		},
		{
			name:     "wrong code",
			body:     marchallObj(t, VerifyRequest{Email: adminEmail, OTP: wrong}),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: "Mã OTP không đúng"}),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newRequest(http.MethodPost, "/api/verify-otp", tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}

	var token string
	t.Run("right code", func(t *testing.T) {
		req, rec := newRequest(http.MethodPost, "/api/verify-otp", marchallObj(t, VerifyRequest{Email: adminEmail, OTP: code}))
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		resp := unmarchallObj(t, rec.Body.Bytes())
		assert.Equal(t, true, resp["success"])
		assert.Equal(t, "Xác thực thành công", resp["message"])

		sess := resp["session"].(map[string]interface{})
		assert.Equal(t, adminEmail, sess["email"])
		loginTime, expiry := sess["loginTime"].(float64), sess["expiry"].(float64)
		assert.InDelta(t, app.conf.Server.SessionTTL.Milliseconds(), expiry-loginTime, 1)
		token = sess["token"].(string)
		assert.NotEmpty(t, token)
	})

	t.Run("code is single use", func(t *testing.T) {
		tt := httpTest{
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: "Không tìm thấy mã OTP"}),
		}
		req, rec := newRequest(http.MethodPost, "/api/verify-otp", marchallObj(t, VerifyRequest{Email: adminEmail, OTP: code}))
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, tt, rec)
	})

	t.Run("token opens admin endpoints", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/api/students", token)
		app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func Test_authApi_resend(t *testing.T) {
	app := setup(t)

	tests := []httpTest{
		{
			name:     "blank email",
			body:     marchallObj(t, ResendRequest{Email: " "}),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: "Email không hợp lệ"}),
		},
		{
			name:     "not an admin",
			body:     marchallObj(t, ResendRequest{Email: "x@test.vn"}),
			wantCode: http.StatusUnauthorized,
			wantData: marchallObj(t, httpErr{Error: "Email không được phép"}),
		},
		{
			name:     "admin",
			body:     marchallObj(t, ResendRequest{Email: adminEmail}),
			wantCode: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newRequest(http.MethodPost, "/api/resend-otp", tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}

	t.Run("resent code replaces the previous one", func(t *testing.T) {
		first := login(t, app, adminEmail, adminPassword).DebugOTP

		req, rec := newRequest(http.MethodPost, "/api/resend-otp", marchallObj(t, ResendRequest{Email: adminEmail}))
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
		resp := unmarchallObj(t, rec.Body.Bytes())
		assert.Equal(t, "Mã OTP mới được hiển thị trong console và giao diện", resp["message"])
		second := resp["debug_otp"].(string)

		if first != second {
			req, rec = newRequest(http.MethodPost, "/api/verify-otp", marchallObj(t, VerifyRequest{Email: adminEmail, OTP: first}))
			app.ServeHTTP(rec, req)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		}
		req, rec = newRequest(http.MethodPost, "/api/verify-otp", marchallObj(t, VerifyRequest{Email: adminEmail, OTP: second}))
		app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func Test_adminGuard(t *testing.T) {
	app := setup(t)

	tests := []httpTest{
		{
			name:     "no token",
			wantCode: http.StatusUnauthorized,
			wantData: marchallObj(t, errMissingToken),
		},
		{
			name:     "malformed token",
			token:    "not-a-jwt",
			wantCode: http.StatusUnauthorized,
			wantData: marchallObj(t, errMissingToken),
		},
		{
			name:     "revoked admin",
			token:    getToken(t, app.conf, "gone@test.vn"),
			wantCode: http.StatusUnauthorized,
			wantData: marchallObj(t, errMissingToken),
		},
		{
			name:     "admin",
			token:    getToken(t, app.conf, adminEmail),
			wantCode: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodGet, "/api/debug/schema", tt.token)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}

	t.Run("guard disabled", func(t *testing.T) {
		app := setup(t, func(conf *core.Config) { conf.Server.RequireAdminToken = false })
		req, rec := newRequest(http.MethodGet, "/api/debug/schema")
		app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("method not allowed", func(t *testing.T) {
		tt := httpTest{
			wantCode: http.StatusMethodNotAllowed,
			wantData: marchallObj(t, httpErr{Error: "Phương thức không được phép cho endpoint này"}),
		}
		req, rec := newRequest(http.MethodGet, "/api/save-student")
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, tt, rec)
	})
}
