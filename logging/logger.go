package logging

// LogLevel 日志级别
type LogLevel int

const (
	LogLevelDebug LogLevel = iota
	LogLevelInfo
	LogLevelWarn
	LogLevelError
)

// String 返回日志级别的字符串表示
func (l LogLevel) String() string {
	switch l {
	case LogLevelDebug:
		return "DEBUG"
	case LogLevelInfo:
		return "INFO"
	case LogLevelWarn:
		return "WARN"
	case LogLevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Field 日志字段
type Field struct {
	Key   string
	Value any
}

// Logger 日志接口
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	Log(level LogLevel, msg string, fields ...Field)
	WithCategory(category string) Logger
}

// nopLogger 丢弃一切输出
type nopLogger struct{}

// NewNop 创建空日志器，库的默认选择
func NewNop() Logger { return nopLogger{} }

func (nopLogger) Debug(string, ...Field)          {}
func (nopLogger) Info(string, ...Field)           {}
func (nopLogger) Warn(string, ...Field)           {}
func (nopLogger) Error(string, ...Field)          {}
func (nopLogger) Log(LogLevel, string, ...Field)  {}
func (n nopLogger) WithCategory(string) Logger    { return n }
