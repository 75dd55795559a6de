package kernel

import (
	"fmt"
	"runtime/trace"
	"strings"
)

// Log emits a diagnostic event for the task when Go execution tracing
// is active. It costs nothing otherwise.
func (t *Task) Log(msg string) {
	if trace.IsEnabled() {
		var sb strings.Builder
		sb.WriteString(t.Name())
		sb.WriteRune(' ')
		sb.WriteString(msg)
		trace.Log(t.tctx, taskTraceCategory, sb.String())
	}
}

// Logf is Log with formatting.
func (t *Task) Logf(format string, args ...any) {
	if trace.IsEnabled() {
		var sb strings.Builder
		sb.WriteString(t.Name())
		sb.WriteRune(' ')
		fmt.Fprintf(&sb, format, args...)
		trace.Log(t.tctx, taskTraceCategory, sb.String())
	}
}
