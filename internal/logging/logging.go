// Package logging builds the component loggers used across TaskFlow.
//
// Every component gets a standard *log.Logger with a bracketed prefix such
// as "[sync] ". Output goes to stderr, or to a size-rotated file when one is
// configured. Debug lines are written only while verbose mode is on, and
// verbose mode can be flipped at runtime.
package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"sync/atomic"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Options configures log output.
type Options struct {
	// File to write to; empty means stderr
	File string

	// MaxSizeMB before the file is rotated (default: 50)
	MaxSizeMB int

	// MaxBackups is the number of rotated files kept (default: 5)
	MaxBackups int

	// MaxAgeDays before rotated files are deleted (0 = keep)
	MaxAgeDays int

	// Verbose enables Debugf output
	Verbose bool
}

var verbose atomic.Bool

// SetVerbose turns debug output on or off for every logger.
func SetVerbose(on bool) {
	verbose.Store(on)
}

// Verbose reports whether debug output is on.
func Verbose() bool {
	return verbose.Load()
}

// Debugf writes to l only in verbose mode.
func Debugf(l *log.Logger, format string, args ...any) {
	if !verbose.Load() {
		return
	}
	l.Output(2, "DEBUG: "+fmt.Sprintf(format, args...))
}

// Factory hands out prefixed loggers sharing one output.
type Factory struct {
	out    io.Writer
	closer io.Closer
}

// New opens the configured output and applies opts.Verbose.
func New(opts Options) *Factory {
	SetVerbose(opts.Verbose)

	if opts.File == "" {
		return &Factory{out: os.Stderr}
	}

	if opts.MaxSizeMB <= 0 {
		opts.MaxSizeMB = 50
	}
	if opts.MaxBackups <= 0 {
		opts.MaxBackups = 5
	}
	lj := &lumberjack.Logger{
		Filename:   opts.File,
		MaxSize:    opts.MaxSizeMB,
		MaxBackups: opts.MaxBackups,
		MaxAge:     opts.MaxAgeDays,
		Compress:   true,
	}
	return &Factory{out: lj, closer: lj}
}

// Discard returns a Factory whose loggers write nowhere.
func Discard() *Factory {
	return &Factory{out: io.Discard}
}

// Logger returns a logger prefixed with "[component] ".
func (f *Factory) Logger(component string) *log.Logger {
	return log.New(f.out, "["+component+"] ", log.LstdFlags)
}

// Close flushes and closes a log file, if one is open.
func (f *Factory) Close() error {
	if f.closer == nil {
		return nil
	}
	return f.closer.Close()
}
