package emailsvc

import "github.com/trezcool/hocsinh/core"

// New returns the email service selected by EMAIL_BACKEND (console by default).
func New(conf *core.Config, logger core.Logger) core.EmailService {
	switch conf.Email.Backend {
	case "sendgrid":
		return NewSendgridService(conf, logger)
	case "smtp":
		return NewSMTPService(conf, logger)
	default:
		return NewConsoleService(conf)
	}
}
