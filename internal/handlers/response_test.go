package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/HammerMeetNail/kinship/internal/apperror"
)

func TestStatusForKind(t *testing.T) {
	tests := map[apperror.Kind]int{
		apperror.KindValidation:       http.StatusBadRequest,
		apperror.KindInvalidOperation: http.StatusBadRequest,
		apperror.KindUnauthenticated:  http.StatusUnauthorized,
		apperror.KindForbidden:        http.StatusForbidden,
		apperror.KindNotFound:         http.StatusNotFound,
		apperror.KindConflict:         http.StatusConflict,
		apperror.KindInternal:         http.StatusInternalServerError,
	}
	for kind, want := range tests {
		if got := StatusForKind(kind); got != want {
			t.Errorf("kind %s: expected %d, got %d", kind, want, got)
		}
	}
}

func TestWriteServiceError_TaggedError(t *testing.T) {
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	err := fmt.Errorf("loading: %w", apperror.New(apperror.KindConflict, "Relationship already exists"))

	writeServiceError(rr, req, err, true)

	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rr.Code)
	}
	var resp ErrorResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if resp.Error != "Relationship already exists" || resp.Details != nil {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestWriteServiceError_ValidationDetails(t *testing.T) {
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/", nil)

	writeServiceError(rr, req, apperror.Validation(map[string]string{"email": "must be a valid email address"}), false)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	var resp ErrorResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if resp.Details["email"] == "" {
		t.Fatalf("expected email detail, got %+v", resp)
	}
}

func TestWriteServiceError_InternalHiddenInProduction(t *testing.T) {
	cause := errors.New("pq: connection refused")

	rr := httptest.NewRecorder()
	writeServiceError(rr, httptest.NewRequest(http.MethodGet, "/", nil), cause, true)
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
	var resp ErrorResponse
	_ = json.Unmarshal(rr.Body.Bytes(), &resp)
	if resp.Error != "Internal server error" {
		t.Fatalf("expected generic message, got %q", resp.Error)
	}

	rr = httptest.NewRecorder()
	writeServiceError(rr, httptest.NewRequest(http.MethodGet, "/", nil), cause, false)
	_ = json.Unmarshal(rr.Body.Bytes(), &resp)
	if resp.Error != cause.Error() {
		t.Fatalf("expected raw message outside production, got %q", resp.Error)
	}
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
	}{
		{"Bearer abc.def", "abc.def"},
		{"bearer abc", "abc"},
		{"Basic abc", ""},
		{"Bearer", ""},
		{"", ""},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if tt.header != "" {
			req.Header.Set("Authorization", tt.header)
		}
		if got := BearerToken(req); got != tt.want {
			t.Errorf("header %q: expected %q, got %q", tt.header, tt.want, got)
		}
	}
}
