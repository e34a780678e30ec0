package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// ConsoleOptions 控制台日志选项
type ConsoleOptions struct {
	MinimumLevel     LogLevel
	IncludeTimestamp bool
	TimestampFormat  string
	Output           io.Writer
}

// consoleLogger 文本格式的控制台日志器
type consoleLogger struct {
	opts     ConsoleOptions
	category string
	mu       *sync.Mutex
}

// NewConsole 创建控制台日志器
func NewConsole(options ...ConsoleOptions) Logger {
	opts := ConsoleOptions{
		MinimumLevel:     LogLevelInfo,
		IncludeTimestamp: true,
		TimestampFormat:  "2006-01-02 15:04:05",
		Output:           os.Stdout,
	}
	if len(options) > 0 {
		opts = options[0]
		if opts.Output == nil {
			opts.Output = os.Stdout
		}
		if opts.TimestampFormat == "" {
			opts.TimestampFormat = "2006-01-02 15:04:05"
		}
	}
	return &consoleLogger{opts: opts, mu: &sync.Mutex{}}
}

func (l *consoleLogger) Debug(msg string, fields ...Field) { l.Log(LogLevelDebug, msg, fields...) }
func (l *consoleLogger) Info(msg string, fields ...Field)  { l.Log(LogLevelInfo, msg, fields...) }
func (l *consoleLogger) Warn(msg string, fields ...Field)  { l.Log(LogLevelWarn, msg, fields...) }
func (l *consoleLogger) Error(msg string, fields ...Field) { l.Log(LogLevelError, msg, fields...) }

func (l *consoleLogger) Log(level LogLevel, msg string, fields ...Field) {
	if level < l.opts.MinimumLevel {
		return
	}

	var sb strings.Builder
	if l.opts.IncludeTimestamp {
		sb.WriteString(time.Now().Format(l.opts.TimestampFormat))
		sb.WriteByte(' ')
	}
	sb.WriteString(fmt.Sprintf("[%s]", level))
	if l.category != "" {
		sb.WriteString(" (" + l.category + ")")
	}
	sb.WriteByte(' ')
	sb.WriteString(msg)
	for _, f := range fields {
		sb.WriteString(fmt.Sprintf(" %s=%v", f.Key, f.Value))
	}
	sb.WriteByte('\n')

	l.mu.Lock()
	defer l.mu.Unlock()
	_, _ = l.opts.Output.Write([]byte(sb.String()))
}

func (l *consoleLogger) WithCategory(category string) Logger {
	clone := *l
	clone.category = category
	return &clone
}
