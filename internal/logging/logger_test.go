package logging

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestErrNilIsDiscarded(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Options{Level: LevelDebug, Output: &buf})

	logger.Info("operation done", Err(nil))

	out := buf.String()
	if !strings.Contains(out, "operation done") {
		t.Fatalf("record missing from output: %q", out)
	}
	if strings.Contains(out, KeyError) {
		t.Errorf("nil error rendered an attribute: %q", out)
	}
	if strings.Contains(out, `=""`) {
		t.Errorf("nil error rendered an empty attribute: %q", out)
	}
}

func TestErrAttachesError(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Options{Level: LevelDebug, Output: &buf})

	logger.Warn("operation failed", Err(errors.New("boom")))

	out := buf.String()
	if !strings.Contains(out, KeyError+"=boom") {
		t.Errorf("output missing error attribute: %q", out)
	}
}
