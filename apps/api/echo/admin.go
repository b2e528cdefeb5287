package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/hocsinh/core"
	"github.com/trezcool/hocsinh/core/otp"
)

type (
	LoginRequest struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}

	VerifyRequest struct {
		Email string `json:"email"`
		OTP   string `json:"otp"`
	}

	ResendRequest struct {
		Email string `json:"email"`
	}

	DeliveryResponse struct {
		Success  bool   `json:"success"`
		Message  string `json:"message"`
		Email    string `json:"email,omitempty"`
		Fallback bool   `json:"fallback"`
		DebugOTP string `json:"debug_otp,omitempty"`
	}

	SessionResponse struct {
		Email     string `json:"email"`
		LoginTime int64  `json:"loginTime"` // unix ms
		Expiry    int64  `json:"expiry"`    // unix ms
		Token     string `json:"token"`
	}

	VerifyResponse struct {
		Success bool            `json:"success"`
		Message string          `json:"message"`
		Session SessionResponse `json:"session"`
	}
)

const (
	msgOTPSent         = "Mã OTP đã được gửi đến email của bạn. Kiểm tra cả thư mục spam."
	msgOTPConsole      = "Mã OTP được hiển thị trong console và giao diện"
	msgOTPResent       = "Mã OTP mới đã được gửi đến email của bạn. Kiểm tra cả thư mục spam."
	msgOTPResentShown  = "Mã OTP mới được hiển thị trong console và giao diện"
	msgOTPVerified     = "Xác thực thành công"
	msgInvalidEmailArg = "Email không hợp lệ"
)

type authApi struct {
	svc  otp.Service
	conf *core.Config
}

func registerAuthAPI(g *echo.Group, svc otp.Service, conf *core.Config) {
	api := authApi{svc: svc, conf: conf}

	g.POST("/admin-login", api.login)
	g.POST("/verify-otp", api.verify)
	g.POST("/resend-otp", api.resend)
}

// Handlers

func (api *authApi) login(ctx echo.Context) error {
	var data LoginRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LoginRequest")
	}

	d, err := api.svc.Login(ctx.Request().Context(), data.Email, data.Password)
	if err != nil {
		return errors.Wrap(err, "logging in")
	}
	resp := deliveryResponse(d, msgOTPSent, msgOTPConsole)
	resp.Email = d.Email
	return ctx.JSON(http.StatusOK, resp)
}

func (api *authApi) resend(ctx echo.Context) error {
	var data ResendRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ResendRequest")
	}
	if core.CleanString(data.Email) == "" {
		return core.NewValidationError(errors.New(msgInvalidEmailArg))
	}

	d, err := api.svc.Resend(ctx.Request().Context(), data.Email)
	if err != nil {
		return errors.Wrap(err, "resending otp")
	}
	return ctx.JSON(http.StatusOK, deliveryResponse(d, msgOTPResent, msgOTPResentShown))
}

func (api *authApi) verify(ctx echo.Context) error {
	var data VerifyRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to VerifyRequest")
	}

	sess, err := api.svc.Verify(ctx.Request().Context(), data.Email, data.OTP)
	if err != nil {
		return errors.Wrap(err, "verifying otp")
	}
	token, err := GenerateToken(NewClaims(sess, api.conf), api.conf.SecretKey)
	if err != nil {
		return errors.Wrap(err, "generating token")
	}

	return ctx.JSON(http.StatusOK, VerifyResponse{
		Success: true,
		Message: msgOTPVerified,
		Session: SessionResponse{
			Email:     sess.Email,
			LoginTime: sess.LoginTime.UnixNano() / 1e6,
			Expiry:    sess.Expiry.UnixNano() / 1e6,
			Token:     token,
		},
	})
}

func deliveryResponse(d otp.Delivery, sentMsg, fallbackMsg string) DeliveryResponse {
	resp := DeliveryResponse{Success: true, Message: sentMsg, Fallback: d.Fallback, DebugOTP: d.DebugOTP}
	if d.Fallback {
		resp.Message = fallbackMsg
	}
	return resp
}
