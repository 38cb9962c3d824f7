//go:build !tinygo

package kernel

import (
	"fmt"
	"runtime"
	"strings"
)

const maxStackFrames = 64

// captureStack formats the faulting goroutine's frames in the usual
// "func\n\tfile:line" layout, leaving out the fatal reporting path itself.
func captureStack() []byte {
	pcs := make([]uintptr, maxStackFrames)
	n := runtime.Callers(2, pcs)
	frames := runtime.CallersFrames(pcs[:n])
	var b strings.Builder
	for {
		f, more := frames.Next()
		if !reportFrame(f.Function) {
			fmt.Fprintf(&b, "%s\n\t%s:%d\n", f.Function, f.File, f.Line)
		}
		if !more {
			break
		}
	}
	return []byte(b.String())
}

func reportFrame(fn string) bool {
	return strings.HasPrefix(fn, "sync.") ||
		strings.Contains(fn, ".(*Kernel).report") ||
		strings.Contains(fn, ".(*Kernel).fatalf")
}
