package errs

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorMessage(t *testing.T) {
	err := New(ErrNotFound, "fetch serialized state", errors.New("account has no boc")).
		WithAddress("0:abcd").
		WithFunction("timestamp")

	expected := "fetch serialized state timestamp (0:abcd): account has no boc"
	if err.Error() != expected {
		t.Errorf("expected %q, got %q", expected, err.Error())
	}
}

func TestErrorMessageWithoutCause(t *testing.T) {
	err := New(ErrTimeout, "deploy failed", nil)
	if err.Error() != "deploy failed: timeout" {
		t.Errorf("unexpected message: %s", err.Error())
	}
}

func TestKindSurvivesWrapping(t *testing.T) {
	cause := errors.New("connection refused")
	err := fmt.Errorf("deploy: %w", New(ErrNetwork, "query account", cause))

	if !errors.Is(err, ErrNetwork) {
		t.Fatal("expected errors.Is to find ErrNetwork")
	}
	if !errors.Is(err, cause) {
		t.Fatal("expected errors.Is to find the cause")
	}
	if errors.Is(err, ErrTimeout) {
		t.Fatal("unexpected ErrTimeout match")
	}
	if KindOf(err) != ErrNetwork {
		t.Errorf("expected ErrNetwork, got %v", KindOf(err))
	}
}

func TestAs(t *testing.T) {
	wrapped := fmt.Errorf("outer: %w", Newf(ErrEncoding, "build call message", "unknown function %q", "nope"))

	e, ok := As(wrapped)
	if !ok {
		t.Fatal("expected As to unwrap")
	}
	if e.Op != "build call message" {
		t.Errorf("unexpected op: %s", e.Op)
	}

	if _, ok := As(errors.New("plain")); ok {
		t.Fatal("expected As to fail for plain error")
	}
	if KindOf(nil) != nil {
		t.Fatal("expected nil kind for nil error")
	}
}
