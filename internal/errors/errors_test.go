package errors

import (
	"fmt"
	"testing"
)

func TestExitCodeFromWrappedError(t *testing.T) {
	err := fmt.Errorf("submit: %w", New(CodeSession, "no wallet connected"))
	if got := ExitCode(err); got != int(CodeSession) {
		t.Fatalf("expected exit code %d, got %d", CodeSession, got)
	}
	if got := ExitCode(fmt.Errorf("plain")); got != int(CodeInternal) {
		t.Fatalf("expected internal exit code for untyped error, got %d", got)
	}
	if got := ExitCode(nil); got != 0 {
		t.Fatalf("expected zero exit code for nil, got %d", got)
	}
}

func TestKindDistinguishesInputFromRetry(t *testing.T) {
	usage := New(CodeUsage, "amount must be greater than zero")
	rejected := New(CodeRejected, "user rejected the request")
	if Kind(usage) != "usage_error" || Retryable(usage) {
		t.Fatalf("usage errors must ask for input fixes, got kind=%s retryable=%v", Kind(usage), Retryable(usage))
	}
	if Kind(rejected) != "rejected" || !Retryable(rejected) {
		t.Fatalf("rejections must be retryable, got kind=%s retryable=%v", Kind(rejected), Retryable(rejected))
	}
	if Kind(New(CodeNeedInfo, "x")) != "need_more_info" {
		t.Fatal("expected need_more_info kind")
	}
}

func TestWrapKeepsCause(t *testing.T) {
	cause := fmt.Errorf("disk full")
	err := Wrap(CodePersistence, "write transaction log", cause)
	if err.Error() != "write transaction log: disk full" {
		t.Fatalf("unexpected message: %s", err.Error())
	}
	if err.Unwrap() != cause {
		t.Fatal("expected Unwrap to return cause")
	}
}
