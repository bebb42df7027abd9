// Package display is the operator-facing output channel: plain messages to
// the terminal, and leveled diagnostics through zap gated by a verbosity
// count (-v, -vv).
package display

import (
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Display carries the output writer, the diagnostic logger and the styles
// used to render prompts.
type Display struct {
	out       io.Writer
	log       *zap.SugaredLogger
	verbosity int
	styles    Styles
}

// New creates a Display writing messages to out and diagnostics to stderr.
func New(out io.Writer, verbosity int) *Display {
	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.TimeKey = ""
	encCfg.CallerKey = ""
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encCfg),
		zapcore.Lock(zapcore.AddSync(os.Stderr)),
		LevelFor(verbosity),
	)
	return NewWithLogger(out, zap.New(core), verbosity)
}

// NewWithLogger creates a Display around an existing zap logger.
func NewWithLogger(out io.Writer, logger *zap.Logger, verbosity int) *Display {
	if out == nil {
		out = io.Discard
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Display{
		out:       out,
		log:       logger.Sugar(),
		verbosity: verbosity,
		styles:    NewStyles(out),
	}
}

// Discard returns a Display that drops everything. Useful in tests.
func Discard() *Display {
	return NewWithLogger(io.Discard, zap.NewNop(), 0)
}

// LevelFor maps a verbosity count to the minimum zap level shown.
func LevelFor(verbosity int) zapcore.Level {
	switch {
	case verbosity >= 2:
		return zapcore.DebugLevel
	case verbosity == 1:
		return zapcore.InfoLevel
	default:
		return zapcore.WarnLevel
	}
}

// Out is the writer prompts are rendered to.
func (d *Display) Out() io.Writer { return d.out }

// Verbosity returns the configured verbosity count.
func (d *Display) Verbosity() int { return d.verbosity }

// Styles returns the prompt styles bound to the output writer.
func (d *Display) Styles() Styles { return d.styles }

// Display writes msg to the output followed by a newline.
func (d *Display) Display(msg string) {
	fmt.Fprintln(d.out, msg)
}

// Warning logs at warn level; always shown.
func (d *Display) Warning(msg string, keysAndValues ...any) {
	d.log.Warnw(msg, keysAndValues...)
}

// Error logs at error level.
func (d *Display) Error(msg string, keysAndValues ...any) {
	d.log.Errorw(msg, keysAndValues...)
}

// V logs a message shown from -v.
func (d *Display) V(msg string, keysAndValues ...any) {
	d.log.Infow(msg, keysAndValues...)
}

// VV logs a message shown from -vv.
func (d *Display) VV(msg string, keysAndValues ...any) {
	d.log.Debugw(msg, keysAndValues...)
}

// With returns a Display whose diagnostics carry the given fields.
func (d *Display) With(keysAndValues ...any) *Display {
	cp := *d
	cp.log = d.log.With(keysAndValues...)
	return &cp
}

// Sync flushes buffered diagnostics.
func (d *Display) Sync() {
	_ = d.log.Sync()
}
