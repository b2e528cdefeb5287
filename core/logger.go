package core

// LogPerson identifies the admin on whose behalf an entry is logged.
type LogPerson struct {
	ID    string
	Email string
}

// Logger is any service that can log (and report) application events.
// args may hold errors, extra values and at most one LogPerson.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}
