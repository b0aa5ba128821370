package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestFrom(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantKind   Kind
		wantStatus int
		wantForm   bool
	}{
		{name: "validation", err: Validation("Title must be at least 3 characters long", nil), wantKind: KindValidation, wantStatus: http.StatusBadRequest, wantForm: true},
		{name: "auth", err: Auth("Unauthorized"), wantKind: KindAuth, wantStatus: http.StatusUnauthorized},
		{name: "auth form", err: Auth("Incorrect username or password").AsForm(), wantKind: KindAuth, wantStatus: http.StatusUnauthorized, wantForm: true},
		{name: "not found wrapped", err: fmt.Errorf("load: %w", NotFound("Post not found")), wantKind: KindNotFound, wantStatus: http.StatusNotFound},
		{name: "conflict", err: Conflict("Username already used"), wantKind: KindConflict, wantStatus: http.StatusConflict},
		{name: "plain error", err: errors.New("boom"), wantKind: KindUnexpected, wantStatus: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := From(tt.err)
			if e.Kind != tt.wantKind {
				t.Errorf("Kind = %s, want %s", e.Kind, tt.wantKind)
			}
			if e.Kind.Status() != tt.wantStatus {
				t.Errorf("Status = %d, want %d", e.Kind.Status(), tt.wantStatus)
			}
			if e.Form != tt.wantForm {
				t.Errorf("Form = %v, want %v", e.Form, tt.wantForm)
			}
		})
	}
}

func TestUnexpectedUnwraps(t *testing.T) {
	cause := errors.New("connection reset")
	err := Unexpected(cause)
	if !errors.Is(err, cause) {
		t.Error("Unexpected should wrap its cause")
	}
	if From(nil) != nil {
		t.Error("From(nil) should be nil")
	}
	if Is(nil, KindNotFound) {
		t.Error("nil error has no kind")
	}
}
