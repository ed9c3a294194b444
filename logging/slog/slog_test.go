package slog

import (
	"bytes"
	stdslog "log/slog"
	"strings"
	"testing"

	"github.com/IvanBrykalov/sharedstate/logging"
)

func TestLogger_WritesAttrs(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	h := stdslog.NewTextHandler(&buf, &stdslog.HandlerOptions{Level: stdslog.LevelDebug})
	l := Logger{L: stdslog.New(h)}

	l.Debug("settled", logging.Fields{"key": "count"})

	out := buf.String()
	if !strings.Contains(out, "msg=settled") || !strings.Contains(out, "key=count") {
		t.Fatalf("unexpected output: %s", out)
	}
}
