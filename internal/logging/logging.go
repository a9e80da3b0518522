// Package logging builds the logrus logger used by the command line.
package logging

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options configures New.
type Options struct {
	// Verbose enables debug messages.
	Verbose bool
	// File, when set, sends logs to a rotating file instead of Output.
	File string
	// Output defaults to stderr.
	Output io.Writer
}

// Formatter renders entries as
//
//	[2025-12-23 20:14:04] [info ] authorization complete client_id=abc
type Formatter struct{}

// fieldOrder lists the fields printed first, in this order.
var fieldOrder = []string{"client_id", "intent", "action", "type", "service", "error"}

func (f *Formatter) Format(entry *logrus.Entry) ([]byte, error) {
	buf := entry.Buffer
	if buf == nil {
		buf = &bytes.Buffer{}
	}

	level := entry.Level.String()
	if level == "warning" {
		level = "warn"
	}
	fmt.Fprintf(buf, "[%s] [%-5s] %s", entry.Time.Format("2006-01-02 15:04:05"), level, strings.TrimRight(entry.Message, "\r\n"))

	seen := make(map[string]bool, len(entry.Data))
	for _, k := range fieldOrder {
		if v, ok := entry.Data[k]; ok {
			fmt.Fprintf(buf, " %s=%v", k, v)
			seen[k] = true
		}
	}
	rest := make([]string, 0, len(entry.Data))
	for k := range entry.Data {
		if !seen[k] {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	for _, k := range rest {
		fmt.Fprintf(buf, " %s=%v", k, entry.Data[k])
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

// New returns a configured logger and a func closing its output.
func New(opts Options) (*logrus.Logger, func() error, error) {
	l := logrus.New()
	l.SetFormatter(&Formatter{})
	l.SetLevel(logrus.InfoLevel)
	if opts.Verbose {
		l.SetLevel(logrus.DebugLevel)
	}

	if opts.File == "" {
		out := opts.Output
		if out == nil {
			out = os.Stderr
		}
		l.SetOutput(out)
		return l, func() error { return nil }, nil
	}

	if err := os.MkdirAll(filepath.Dir(opts.File), 0o755); err != nil {
		return nil, nil, fmt.Errorf("logging: failed to create log directory: %w", err)
	}
	w := &lumberjack.Logger{
		Filename:   opts.File,
		MaxSize:    10,
		MaxBackups: 3,
		Compress:   false,
	}
	l.SetOutput(w)
	return l, w.Close, nil
}
