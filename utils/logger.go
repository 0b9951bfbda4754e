/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package utils holds the logrus-based logging infrastructure shared by the
// database and repository layers: named loggers with a process-wide registry,
// a colored console formatter, a JSON formatter, and an optional daily
// rolling file sink. Everything is tuned through MOLE_LOG_* environment
// variables so embedding applications need no code to reconfigure it.
package utils

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
)

// Logger is the concrete logger handed out by NewLogger.
type Logger = logrus.Logger

const logTimestampFormat = "2006-01-02 15:04:05.000"

var (
	registryMu sync.RWMutex
	registry   = map[string]*logrus.Logger{}

	logFormat      = EnvDefaultString("MOLE_LOG_FORMAT", "text")
	fileLogEnabled = EnvDefaultBool("MOLE_FILE_LOG", false)
	fileLogDir     = EnvDefaultString("MOLE_FILE_LOG_DIR", "logs")
	fileLogMaxAge  = EnvDefaultInt("MOLE_FILE_LOG_MAX_AGE_DAYS", 7)
)

// NewLogger builds a named logger: console output on stdout in the configured
// format, plus a daily rolling file when MOLE_FILE_LOG is set. The logger is
// registered under its name so SetLoggerLevel can retune it later.
func NewLogger(name string) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	l.SetLevel(ParseLogLevel(EnvDefaultString("MOLE_LOG_LEVEL", "debug")))
	l.SetReportCaller(true)

	f := formatterFor(name)
	l.SetFormatter(f)
	l.AddHook(&writerHook{w: os.Stdout, formatter: f})

	if fileLogEnabled {
		fw := newDailyFileWriter(fileLogDir, name, fileLogMaxAge)
		l.AddHook(&writerHook{w: fw, formatter: &jsonFormatter{name: name}})
	}

	registryMu.Lock()
	registry[name] = l
	registryMu.Unlock()
	return l
}

func formatterFor(name string) logrus.Formatter {
	if strings.EqualFold(strings.TrimSpace(logFormat), "json") {
		return &jsonFormatter{name: name}
	}
	return &textFormatter{name: name}
}

// SetLoggerLevel retunes one registered logger. It reports whether a logger
// with that name exists.
func SetLoggerLevel(name, level string) bool {
	registryMu.RLock()
	l, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return false
	}
	l.SetLevel(ParseLogLevel(level))
	return true
}

// SetAllLoggersLevel retunes every registered logger at once.
func SetAllLoggersLevel(level logrus.Level) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	for _, l := range registry {
		l.SetLevel(level)
	}
}

// ParseLogLevel maps a level name to a logrus level; unknown names fall back
// to info.
func ParseLogLevel(s string) logrus.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return logrus.TraceLevel
	case "debug":
		return logrus.DebugLevel
	case "warn", "warning":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	case "fatal":
		return logrus.FatalLevel
	case "panic":
		return logrus.PanicLevel
	default:
		return logrus.InfoLevel
	}
}

// writerHook renders entries with its own formatter and sends them to one
// sink, independent of the logger's output.
type writerHook struct {
	w         io.Writer
	formatter logrus.Formatter
}

func (h *writerHook) Levels() []logrus.Level { return logrus.AllLevels }

func (h *writerHook) Fire(e *logrus.Entry) error {
	b, err := h.formatter.Format(e)
	if err != nil {
		return err
	}
	_, err = h.w.Write(b)
	return err
}

// textFormatter renders one line per entry:
//
//	2026-08-25 10:21:07.412  INFO DATABASE repository/base.go:88 : message key=value
type textFormatter struct {
	name string
}

var (
	levelErrorColor = color.New(color.FgRed)
	levelWarnColor  = color.New(color.FgYellow)
	levelInfoColor  = color.New(color.FgGreen)
	levelDebugColor = color.New(color.FgBlue)
	loggerNameColor = color.New(color.FgCyan)
	callerColor     = color.New(color.Faint)
)

func levelColor(level logrus.Level) *color.Color {
	switch level {
	case logrus.ErrorLevel, logrus.FatalLevel, logrus.PanicLevel:
		return levelErrorColor
	case logrus.WarnLevel:
		return levelWarnColor
	case logrus.InfoLevel:
		return levelInfoColor
	default:
		return levelDebugColor
	}
}

func (f *textFormatter) Format(e *logrus.Entry) ([]byte, error) {
	ts := e.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	var b strings.Builder
	b.WriteString(ts.Format(logTimestampFormat))
	b.WriteByte(' ')
	b.WriteString(levelColor(e.Level).Sprintf("%5s", strings.ToUpper(e.Level.String())))
	b.WriteByte(' ')
	b.WriteString(loggerNameColor.Sprint(f.name))
	if c := shortCaller(e); c != "" {
		b.WriteByte(' ')
		b.WriteString(callerColor.Sprint(c))
	}
	b.WriteString(" : ")
	b.WriteString(e.Message)
	for _, k := range sortedFieldKeys(e.Data) {
		fmt.Fprintf(&b, " %s=%v", k, e.Data[k])
	}
	b.WriteByte('\n')
	return []byte(b.String()), nil
}

// jsonFormatter renders one JSON object per entry for machine-read sinks.
type jsonFormatter struct {
	name string
}

func (f *jsonFormatter) Format(e *logrus.Entry) ([]byte, error) {
	ts := e.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	rec := struct {
		Time    string                 `json:"time"`
		Level   string                 `json:"level"`
		Logger  string                 `json:"logger"`
		Caller  string                 `json:"caller,omitempty"`
		Message string                 `json:"message"`
		Fields  map[string]interface{} `json:"fields,omitempty"`
	}{
		Time:    ts.Format(logTimestampFormat),
		Level:   e.Level.String(),
		Logger:  f.name,
		Caller:  shortCaller(e),
		Message: e.Message,
	}
	if len(e.Data) > 0 {
		rec.Fields = e.Data
	}
	b, err := json.Marshal(rec)
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}

// shortCaller renders the calling frame as package/file.go:line.
func shortCaller(e *logrus.Entry) string {
	if e.Caller == nil {
		return ""
	}
	p := filepath.ToSlash(e.Caller.File)
	parts := strings.Split(p, "/")
	if len(parts) >= 2 {
		p = parts[len(parts)-2] + "/" + parts[len(parts)-1]
	}
	return fmt.Sprintf("%s:%d", p, e.Caller.Line)
}

func sortedFieldKeys(data logrus.Fields) []string {
	if len(data) == 0 {
		return nil
	}
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && keys[j] < keys[j-1]; j-- {
			keys[j], keys[j-1] = keys[j-1], keys[j]
		}
	}
	return keys
}

// dailyFileWriter appends to <dir>/<name>.<date>.log, switching files when
// the date changes and pruning logs older than maxAgeDays on each switch.
type dailyFileWriter struct {
	dir       string
	name      string
	maxAge    int
	mu      sync.Mutex
	curDate string
	file    *os.File
}

func newDailyFileWriter(dir, name string, maxAgeDays int) *dailyFileWriter {
	return &dailyFileWriter{dir: dir, name: name, maxAge: maxAgeDays}
}

func (w *dailyFileWriter) Write(p []byte) (int, error) {
	today := time.Now().Format("2006-01-02")
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil || w.curDate != today {
		if err := w.rotate(today); err != nil {
			return 0, err
		}
		w.prune()
	}
	return w.file.Write(p)
}

func (w *dailyFileWriter) rotate(date string) error {
	if w.file != nil {
		_ = w.file.Close()
		w.file = nil
	}
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(w.path(date), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	w.file = f
	w.curDate = date
	return nil
}

func (w *dailyFileWriter) path(date string) string {
	return filepath.Join(w.dir, fmt.Sprintf("%s.%s.log", strings.ToLower(w.name), date))
}

func (w *dailyFileWriter) prune() {
	if w.maxAge <= 0 {
		return
	}
	cutoff := time.Now().AddDate(0, 0, -w.maxAge)
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return
	}
	prefix := strings.ToLower(w.name) + "."
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, ".log") {
			continue
		}
		dateStr := strings.TrimSuffix(strings.TrimPrefix(name, prefix), ".log")
		d, err := time.Parse("2006-01-02", dateStr)
		if err != nil {
			continue
		}
		if d.Before(cutoff) {
			_ = os.Remove(filepath.Join(w.dir, name))
		}
	}
}

// EnvDefaultString returns the environment value for key, or def when unset.
func EnvDefaultString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// EnvDefaultBool parses the environment value for key as a boolean.
func EnvDefaultBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return def
		}
		return b
	}
	return def
}

// EnvDefaultInt parses the environment value for key as an integer.
func EnvDefaultInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return def
		}
		return n
	}
	return def
}
