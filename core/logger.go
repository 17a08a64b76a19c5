package core

// Logger is the application-wide logging contract. Implementations may
// forward entries to an error tracker in addition to stdout; extra args
// are attached to the entry as-is.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}
