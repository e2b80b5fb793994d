package errors

import (
	stderrors "errors"
	"fmt"
	"testing"
)

func TestMoodError_Error(t *testing.T) {
	err := &MoodError{
		Code:    ErrNotFound,
		Status:  404,
		Message: "not found: x",
	}

	expected := "NOT_FOUND: not found: x"
	if err.Error() != expected {
		t.Errorf("Error() = %q, want %q", err.Error(), expected)
	}
}

func TestNewInvalidRequest(t *testing.T) {
	err := NewInvalidRequest("text is required")

	if err.Code != ErrInvalidRequest {
		t.Errorf("Code = %q, want %q", err.Code, ErrInvalidRequest)
	}
	if err.Status != 400 {
		t.Errorf("Status = %d, want 400", err.Status)
	}
	if err.Message != "text is required" {
		t.Errorf("Message = %q, want %q", err.Message, "text is required")
	}
}

func TestNewFileNotFound(t *testing.T) {
	err := NewFileNotFound("/tmp/x.csv")

	if err.Code != ErrFileNotFound {
		t.Errorf("Code = %q, want %q", err.Code, ErrFileNotFound)
	}
	if err.Status != 404 {
		t.Errorf("Status = %d, want 404", err.Status)
	}
	if err.Details["path"] != "/tmp/x.csv" {
		t.Errorf("Details[path] = %v", err.Details["path"])
	}
}

func TestNewNoHistory(t *testing.T) {
	err := NewNoHistory()
	if err.Code != ErrNoHistory || err.Status != 404 {
		t.Errorf("got %q/%d, want NO_HISTORY/404", err.Code, err.Status)
	}
}

func TestNewPayloadTooLarge(t *testing.T) {
	err := NewPayloadTooLarge(10, 20)

	if err.Status != 413 {
		t.Errorf("Status = %d, want 413", err.Status)
	}
	if err.Details["max_bytes"] != int64(10) {
		t.Errorf("Details[max_bytes] = %v, want 10", err.Details["max_bytes"])
	}
}

func TestNewCancelled(t *testing.T) {
	err := NewCancelled("export")
	if err.Message != "export cancelled" {
		t.Errorf("Message = %q", err.Message)
	}
	if err.Status != 499 {
		t.Errorf("Status = %d, want 499", err.Status)
	}
}

func TestNewInternal(t *testing.T) {
	err := NewInternal(fmt.Errorf("disk full"))
	if err.Message != "disk full" {
		t.Errorf("Message = %q, want %q", err.Message, "disk full")
	}

	err = NewInternal(nil)
	if err.Message != "internal error" {
		t.Errorf("Message = %q, want %q", err.Message, "internal error")
	}
}

func TestIs(t *testing.T) {
	wrapped := fmt.Errorf("chart: %w", NewNoHistory())

	if !Is(wrapped, ErrNoHistory) {
		t.Error("Is() should see through wrapping")
	}
	if Is(wrapped, ErrInternal) {
		t.Error("Is() matched the wrong code")
	}
	if Is(stderrors.New("plain"), ErrInternal) {
		t.Error("Is() matched a plain error")
	}
}

func TestAs(t *testing.T) {
	if got := As(NewInvalidRequest("bad")); got.Code != ErrInvalidRequest {
		t.Errorf("As() code = %q, want INVALID_REQUEST", got.Code)
	}
	if got := As(stderrors.New("boom")); got.Code != ErrInternal || got.Message != "boom" {
		t.Errorf("As() = %+v, want INTERNAL/boom", got)
	}
}
