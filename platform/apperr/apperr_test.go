package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestHTTPStatusByKind(t *testing.T) {
	cases := []struct {
		err  *Error
		want int
	}{
		{Validation("bad"), http.StatusBadRequest},
		{NotFound("missing"), http.StatusNotFound},
		{AlreadyTerminal("done"), http.StatusConflict},
		{Busy("busy"), http.StatusConflict},
		{Forbidden("no"), http.StatusForbidden},
		{Unavailable("down", errors.New("dial")), http.StatusServiceUnavailable},
		{PartialFailure("half", errors.New("write")), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		if got := tc.err.HTTPStatus(); got != tc.want {
			t.Fatalf("%q: expected status %d, got %d", tc.err.Message, tc.want, got)
		}
	}
}

func TestClassificationSurvivesWrapping(t *testing.T) {
	err := fmt.Errorf("mark won: %w", Busy("lead is busy"))

	if !Is(err, KindConflict) {
		t.Fatalf("expected wrapped busy error to classify as conflict")
	}
	if !IsConflict(err, ReasonBusy) {
		t.Fatalf("expected busy reason to survive wrapping")
	}
	if IsConflict(err, ReasonAlreadyTerminal) {
		t.Fatalf("busy must not be reported as already terminal")
	}
	if GetKind(errors.New("plain")) != KindUnknown {
		t.Fatalf("expected plain errors to have unknown kind")
	}
}

func TestPartialFailureUnwrapsCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := PartialFailure("order created but lead not updated", cause).WithDetails(map[string]string{"orderId": "SO-1"})

	if !errors.Is(err, cause) {
		t.Fatalf("expected partial failure to unwrap to its cause")
	}
	if err.Details == nil {
		t.Fatalf("expected details to be kept")
	}
}
