package rsync

import (
	"bytes"
	"strings"
	"testing"

	"github.com/run0-ai/superfast-rsync/internal/logging"
)

func TestDiffLogsTraceDiagnosticsWhenEnabled(t *testing.T) {
	base := testDataGenerator{64 * 1024, 9, 0}.generate()
	target := testDataGenerator{64 * 1024, 9, 1}.generate()

	signature, err := Calculate(base, SignatureOptions{BlockLen: 1024, StrongLen: 8})
	if err != nil {
		t.Fatalf("Calculate failed: %v", err)
	}
	index, err := NewIndex(signature, base, nil)
	if err != nil {
		t.Fatalf("NewIndex failed: %v", err)
	}

	var logOutput bytes.Buffer
	index.SetLogger(logging.NewLogger(&logOutput, logging.LevelTrace))

	if _, err := DiffToBytes(index, target); err != nil {
		t.Fatalf("DiffToBytes failed: %v", err)
	}

	if !strings.Contains(logOutput.String(), "matched block") {
		t.Error("expected trace log to mention at least one matched block")
	}
}

func TestDiffLogsNothingAtDefaultLevel(t *testing.T) {
	base := testDataGenerator{16 * 1024, 9, 0}.generate()
	signature, err := Calculate(base, SignatureOptions{BlockLen: 1024, StrongLen: 8})
	if err != nil {
		t.Fatalf("Calculate failed: %v", err)
	}
	index, err := NewIndex(signature, base, nil)
	if err != nil {
		t.Fatalf("NewIndex failed: %v", err)
	}

	if _, err := DiffToBytes(index, base); err != nil {
		t.Fatalf("DiffToBytes failed: %v", err)
	}
	// With no logger attached, index.logger is logging.Discard, which is at
	// LevelDisabled and so emits nothing; Diff also ran without a
	// nil-pointer panic.
	if index.logger != logging.Discard {
		t.Error("expected an index built without a logger to use logging.Discard")
	}
}
