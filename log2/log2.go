// Package log2 is a leveled logger for device code:
// - level filtering, e.g. show exchange bytes only with debug enabled
// - safe concurrent change of log level
// - nil *Log is valid and discards everything, so libraries may accept optional loggers
//
// Tests route output into t.Logf via NewTest.
package log2

import (
	"context"
	"fmt"
	"io"
	"io/ioutil"
	"log"
	"math"
	"os"
	"sync/atomic"
	"testing"
)

const ContextKey = "run/log"

const (
	// type specified here helped against accidentally passing flags as level
	Lmicroseconds     int = log.Lmicroseconds
	Lshortfile        int = log.Lshortfile
	LStdFlags         int = log.Ltime | Lshortfile
	LInteractiveFlags int = log.Ltime | Lshortfile | Lmicroseconds
	LServiceFlags     int = Lshortfile
	LTestFlags        int = Lshortfile | Lmicroseconds
)

func ContextWithLog(ctx context.Context, l *Log) context.Context {
	return context.WithValue(ctx, ContextKey, l)
}

// ContextValueLogger returns nil when ctx carries no logger, which is still usable.
func ContextValueLogger(ctx context.Context) *Log {
	v := ctx.Value(ContextKey)
	if v == nil {
		return nil
	}
	if l, ok := v.(*Log); ok {
		return l
	}
	panic(fmt.Errorf("context['%v'] expected type *Log", ContextKey))
}

type Level int32

const (
	LError Level = iota
	LInfo
	LDebug
	LAll Level = math.MaxInt32
)

type FmtFunc func(format string, args ...interface{})

type Log struct {
	l       *log.Logger
	level   Level
	w       io.Writer
	fatalf  FmtFunc
	errfunc atomic.Value // func(error)
}

func NewStderr(level Level) *Log { return NewWriter(os.Stderr, level) }
func NewWriter(w io.Writer, level Level) *Log {
	if w == ioutil.Discard {
		return nil
	}
	return &Log{
		l:     log.New(w, "", LStdFlags),
		level: level,
		w:     w,
	}
}

type FuncWriter struct{ FmtFunc }

func NewFunc(f FmtFunc, level Level) *Log { return NewWriter(FuncWriter{f}, level) }
func (self FuncWriter) Write(b []byte) (int, error) {
	// t.Logf adds its own newline
	s := string(b)
	if n := len(s); n > 0 && s[n-1] == '\n' {
		s = s[:n-1]
	}
	self.FmtFunc("%s", s)
	return len(b), nil
}

func NewTest(t testing.TB, level Level) *Log {
	self := NewFunc(t.Logf, level)
	self.SetFlags(LTestFlags)
	self.fatalf = t.Fatalf
	return self
}

func (self *Log) Clone(level Level) *Log {
	if self == nil {
		return nil
	}
	l := NewWriter(self.w, level)
	l.SetFlags(self.l.Flags())
	l.SetPrefix(self.l.Prefix())
	l.fatalf = self.fatalf
	return l
}

func (self *Log) SetLevel(l Level) {
	if self == nil {
		return
	}
	atomic.StoreInt32((*int32)(&self.level), int32(l))
}

func (self *Log) SetFlags(f int) {
	if self == nil {
		return
	}
	self.l.SetFlags(f)
}

func (self *Log) SetPrefix(prefix string) {
	if self == nil {
		return
	}
	self.l.SetPrefix(prefix)
}

// SetErrorFunc registers f to receive every Error/Errorf call, e.g. to count failures.
// Error(err) passes err as is, Errorf passes formatted message without "error: " prefix.
func (self *Log) SetErrorFunc(f func(error)) {
	if self == nil {
		return
	}
	self.errfunc.Store(f)
}

func (self *Log) Enabled(level Level) bool {
	if self == nil {
		return false
	}
	return atomic.LoadInt32((*int32)(&self.level)) >= int32(level)
}

func (self *Log) Log(level Level, s string) {
	if self.Enabled(level) {
		_ = self.l.Output(3, s)
	}
}
func (self *Log) Logf(level Level, format string, args ...interface{}) {
	if self.Enabled(level) {
		_ = self.l.Output(3, fmt.Sprintf(format, args...))
	}
}

// Printf and Println log at info level. They satisfy mqtt.Logger.
func (self *Log) Printf(format string, args ...interface{}) {
	self.Logf(LInfo, format, args...)
}
func (self *Log) Println(args ...interface{}) {
	self.Log(LInfo, fmt.Sprint(args...))
}

func (self *Log) Error(args ...interface{}) {
	self.Log(LError, "error: "+fmt.Sprint(args...))
	if len(args) == 1 {
		if e, ok := args[0].(error); ok {
			self.callErrorFunc(e)
			return
		}
	}
	self.callErrorFunc(fmt.Errorf("%s", fmt.Sprint(args...)))
}
func (self *Log) Errorf(format string, args ...interface{}) {
	self.Logf(LError, "error: "+format, args...)
	self.callErrorFunc(fmt.Errorf(format, args...))
}
func (self *Log) Info(args ...interface{}) {
	self.Log(LInfo, fmt.Sprint(args...))
}
func (self *Log) Infof(format string, args ...interface{}) {
	self.Logf(LInfo, format, args...)
}
func (self *Log) Debug(args ...interface{}) {
	self.Log(LDebug, "debug: "+fmt.Sprint(args...))
}
func (self *Log) Debugf(format string, args ...interface{}) {
	self.Logf(LDebug, "debug: "+format, args...)
}

func (self *Log) Fatalf(format string, args ...interface{}) {
	if self != nil && self.fatalf != nil {
		self.fatalf(format, args...)
		return
	}
	self.Logf(LError, "fatal: "+format, args...)
	os.Exit(1)
}
func (self *Log) Fatal(args ...interface{}) {
	s := fmt.Sprint(args...)
	if self != nil && self.fatalf != nil {
		self.fatalf("%s", s)
		return
	}
	self.Log(LError, "fatal: "+s)
	os.Exit(1)
}

func (self *Log) callErrorFunc(e error) {
	if self == nil {
		return
	}
	if f, ok := self.errfunc.Load().(func(error)); ok && f != nil {
		f(e)
	}
}
