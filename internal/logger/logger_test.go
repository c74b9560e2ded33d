package logger

import (
	"context"
	"testing"
)

func TestNew_ReturnsUsableLogger(t *testing.T) {
	log := New()
	if log == nil {
		t.Fatal("New() returned nil")
	}
	log.Infow("hello", "symbol", "ABC")
}

func TestFromContext_FallsBackWhenAbsent(t *testing.T) {
	log := FromContext(context.Background())
	if log == nil {
		t.Fatal("FromContext fell back to a nil logger")
	}
}

func TestFromContext_ReturnsStoredLogger(t *testing.T) {
	want := New()
	ctx := context.WithValue(context.Background(), ContextKey, want)
	got := FromContext(ctx)
	if got != want {
		t.Fatal("FromContext did not return the logger stored in the context")
	}
}
