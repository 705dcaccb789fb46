package errors

import (
	"errors"
	"fmt"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func TestRecover_WithPanic(t *testing.T) {
	testFunc := func() (err error) {
		defer Recover(&err, "TestOperation")
		panic("test panic message")
	}

	err := testFunc()
	if err == nil {
		t.Fatal("Expected error from recovered panic, got nil")
	}

	var panicErr *PanicError
	if !errors.As(err, &panicErr) {
		t.Fatalf("Expected PanicError, got %T", err)
	}
	if panicErr.Operation != "TestOperation" {
		t.Errorf("Expected operation 'TestOperation', got '%s'", panicErr.Operation)
	}
	if panicErr.StackTrace == "" {
		t.Error("Expected non-empty stack trace")
	}
	if panicErr.Error() != "panic in TestOperation: test panic message" {
		t.Errorf("unexpected message %q", panicErr.Error())
	}
}

func TestRecover_WithoutPanic(t *testing.T) {
	testFunc := func() (err error) {
		defer Recover(&err, "TestOperation")
		return nil
	}
	if err := testFunc(); err != nil {
		t.Fatalf("Expected no error when no panic occurs, got: %v", err)
	}
}

func TestRecover_WithExistingError(t *testing.T) {
	original := fmt.Errorf("original")
	testFunc := func() (err error) {
		defer Recover(&err, "Op")
		err = original
		panic("boom")
	}
	err := testFunc()
	if !errors.Is(err, original) {
		t.Errorf("original error should be preserved, got %v", err)
	}
}

func TestSafeExecute_GonumShapePanic(t *testing.T) {
	err := SafeExecute("matrix product", func() error {
		var c mat.Dense
		c.Mul(mat.NewDense(2, 3, nil), mat.NewDense(2, 3, nil))
		return nil
	})
	if err == nil {
		t.Fatal("expected an error from mismatched product")
	}
	if !errors.Is(err, mat.ErrShape) {
		t.Errorf("expected mat.ErrShape in chain, got %v", err)
	}
}

func TestSafeCall(t *testing.T) {
	v, err := SafeCall("ok", func() (int, error) { return 42, nil })
	if err != nil || v != 42 {
		t.Fatalf("SafeCall() = %v, %v", v, err)
	}

	_, err = SafeCall("bad", func() (int, error) { panic("nope") })
	var panicErr *PanicError
	if !errors.As(err, &panicErr) {
		t.Fatalf("expected PanicError, got %T", err)
	}
}
