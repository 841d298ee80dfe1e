package logger

import (
	"fmt"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/sirupsen/logrus"
)

// wrapperPackages are skipped when looking for the line that logged.
var wrapperPackages = []string{
	"github.com/sirupsen/logrus.",
	"clawdash/logger.",
}

// callerHook rewrites entry.Caller to the first frame outside logrus and this
// package; logrus alone would report the Entry wrapper methods.
type callerHook struct{}

func (h *callerHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h *callerHook) Fire(entry *logrus.Entry) error {
	if frame, ok := callSite(); ok {
		entry.Caller = &frame
	}
	return nil
}

func callSite() (runtime.Frame, bool) {
	pcs := make([]uintptr, 32)
	n := runtime.Callers(3, pcs)
	frames := runtime.CallersFrames(pcs[:n])
	for {
		frame, more := frames.Next()
		if frame.Function != "" && !isWrapper(frame) {
			return frame, true
		}
		if !more {
			return runtime.Frame{}, false
		}
	}
}

func isWrapper(frame runtime.Frame) bool {
	if strings.HasSuffix(frame.File, "_test.go") {
		return false
	}
	for _, prefix := range wrapperPackages {
		if strings.HasPrefix(frame.Function, prefix) {
			return true
		}
	}
	return false
}

// shortCaller renders the caller as file.go:line.
func shortCaller(f *runtime.Frame) (string, string) {
	return "", fmt.Sprintf("%s:%d", filepath.Base(f.File), f.Line)
}
