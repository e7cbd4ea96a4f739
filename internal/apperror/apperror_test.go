package apperror

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindOf_TaggedAndWrapped(t *testing.T) {
	base := New(KindNotFound, "relationship not found")
	wrapped := fmt.Errorf("loading relationship: %w", base)

	if got := KindOf(base); got != KindNotFound {
		t.Fatalf("expected not_found, got %q", got)
	}
	if got := KindOf(wrapped); got != KindNotFound {
		t.Fatalf("expected wrapped kind not_found, got %q", got)
	}
	if !errors.Is(wrapped, base) {
		t.Fatal("expected errors.Is to match the sentinel")
	}
}

func TestKindOf_UntaggedIsInternal(t *testing.T) {
	if got := KindOf(errors.New("connection refused")); got != KindInternal {
		t.Fatalf("expected internal, got %q", got)
	}
	if got := KindOf(nil); got != "" {
		t.Fatalf("expected empty kind for nil, got %q", got)
	}
}

func TestValidation_CarriesFields(t *testing.T) {
	err := Validation(map[string]string{"email": "must be a valid email address"})
	appErr, ok := As(fmt.Errorf("register: %w", err))
	if !ok {
		t.Fatal("expected As to find the error")
	}
	if appErr.Kind != KindValidation || appErr.Fields["email"] == "" {
		t.Fatalf("unexpected error %+v", appErr)
	}
}
