package core

// Logger is the application-wide logging interface. services/logger provides
// the production implementation; tests plug in lightweight recorders.
//
// args may carry extra context: an error, a map[string]interface{} of fields
// or the acting user.User.
type Logger interface {
	Enable(enabled bool)
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}
