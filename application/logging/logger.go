package logging

// Logger abstracts log output so infrastructure can swap implementations.
type Logger interface {
	Printf(format string, v ...any)
}
