package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestHTTPStatusByKind(t *testing.T) {
	cases := map[Kind]int{
		KindNotFound:     http.StatusNotFound,
		KindValidation:   http.StatusBadRequest,
		KindConflict:     http.StatusConflict,
		KindUnauthorized: http.StatusUnauthorized,
		KindInternal:     http.StatusInternalServerError,
		KindUnavailable:  http.StatusServiceUnavailable,
		KindUnknown:      http.StatusBadRequest,
	}
	for kind, want := range cases {
		if got := New(kind, "x").HTTPStatus(); got != want {
			t.Fatalf("kind %d: expected status %d, got %d", kind, want, got)
		}
	}
}

func TestGetKindFindsWrappedError(t *testing.T) {
	err := fmt.Errorf("list dn: %w", NotFound("dn not found"))
	if !Is(err, KindNotFound) {
		t.Fatalf("expected wrapped not found kind, got %d", GetKind(err))
	}
	if GetKind(errors.New("plain")) != KindUnknown {
		t.Fatal("expected unknown kind for plain error")
	}
}

func TestUnavailableKeepsCause(t *testing.T) {
	cause := errors.New("dial tcp: timeout")
	err := Unavailable("google sheet unreachable", cause)
	if !errors.Is(err, cause) {
		t.Fatal("expected cause to be reachable via errors.Is")
	}
	if err.Error() != "google sheet unreachable: dial tcp: timeout" {
		t.Fatalf("unexpected message %q", err.Error())
	}
}
