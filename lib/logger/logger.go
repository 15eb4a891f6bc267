// Package logger provides a small structured JSON logger in the style
// the rest of this codebase's sibling services use, generalized to run
// without an *http.Request (a Lambda invocation has no such object).
package logger

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"runtime"
	"strings"
	"time"
)

type Level int

const (
	DebugLevel Level = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

func (l Level) String() string {
	return [...]string{"DEBUG", "INFO", "WARN", "ERROR"}[l]
}

type Logger struct {
	minLevel Level
}

func New() *Logger {
	return &Logger{minLevel: DebugLevel}
}

// NewRequestID returns a random hex request id, used when the inbound
// event carries no requestContext.requestId.
func NewRequestID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		return fmt.Sprintf("%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(bytes)
}

func (l *Logger) getSourceLocation(skip int) (string, int) {
	_, file, line, ok := runtime.Caller(skip)
	if !ok {
		return "unknown", 0
	}
	if idx := strings.LastIndex(file, "/"); idx != -1 {
		file = file[idx+1:]
	}
	return file, line
}

func (l *Logger) log(level Level, message string, err error, ctx map[string]interface{}, skip int) {
	if level < l.minLevel {
		return
	}

	file, line := l.getSourceLocation(skip + 1)

	output := map[string]interface{}{
		"time":  time.Now().UTC().Format("2006-01-02T15:04:05.000Z"),
		"level": strings.ToLower(level.String()),
		"msg":   message,
		"src":   fmt.Sprintf("%s:%d", strings.TrimSuffix(file, ".go"), line),
	}

	for k, v := range ctx {
		output[k] = v
	}

	if err != nil {
		output["err"] = err.Error()
	}

	log.SetFlags(0)
	if jsonData, marshalErr := json.Marshal(output); marshalErr == nil {
		log.Println(string(jsonData))
	} else {
		log.Printf(`{"time":"%s","level":"%s","msg":"%s"}`, output["time"], output["level"], message)
	}
}

// WithFields seeds a logging context from request-scoped identifiers
// pulled out of the inbound invocation event.
func (l *Logger) WithFields(requestID, sourceIP, path string) map[string]interface{} {
	return map[string]interface{}{
		"req_id": requestID,
		"ip":     sourceIP,
		"path":   path,
	}
}

func (l *Logger) Debug(message string, ctx map[string]interface{}) {
	l.log(DebugLevel, message, nil, ctx, 1)
}

func (l *Logger) Info(message string, ctx map[string]interface{}) {
	l.log(InfoLevel, message, nil, ctx, 1)
}

func (l *Logger) Warn(message string, ctx map[string]interface{}) {
	l.log(WarnLevel, message, nil, ctx, 1)
}

func (l *Logger) Error(message string, err error, ctx map[string]interface{}) {
	l.log(ErrorLevel, message, err, ctx, 1)
}

var Log = New()

func Debug(message string, ctx map[string]interface{}) { Log.Debug(message, ctx) }
func Info(message string, ctx map[string]interface{})  { Log.Info(message, ctx) }
func Warn(message string, ctx map[string]interface{})  { Log.Warn(message, ctx) }
func Error(message string, err error, ctx map[string]interface{}) {
	Log.Error(message, err, ctx)
}
