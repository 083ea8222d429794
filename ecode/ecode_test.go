package ecode

import (
	"net/http"
	"testing"
)

func TestText(t *testing.T) {
	if got := Text(OK); got != "success" {
		t.Errorf("Text(OK) = %q, want %q", got, "success")
	}
	if got := Text(NothingFound); got != "nothing found" {
		t.Errorf("Text(NothingFound) = %q, want %q", got, "nothing found")
	}
	// Unknown codes fall back to the server error message
	if got := Text(-9999); got != Text(ServerErr) {
		t.Errorf("Text(-9999) = %q, want %q", got, Text(ServerErr))
	}
}

func TestToHTTPStatus(t *testing.T) {
	cases := []struct {
		code int
		want int
	}{
		{OK, http.StatusOK},
		{Unauthorized, http.StatusUnauthorized},
		{RequestErr, http.StatusBadRequest},
		{ParamErr, http.StatusBadRequest},
		{AccessDenied, http.StatusForbidden},
		{NothingFound, http.StatusNotFound},
		{MethodNotAllowed, http.StatusMethodNotAllowed},
		{Conflict, http.StatusConflict},
		{ServerErr, http.StatusInternalServerError},
		{ServiceUnavailable, http.StatusServiceUnavailable},
		{Deadline, http.StatusGatewayTimeout},
		{-12345, http.StatusInternalServerError},
	}

	for _, c := range cases {
		if got := ToHTTPStatus(c.code); got != c.want {
			t.Errorf("ToHTTPStatus(%d) = %d, want %d", c.code, got, c.want)
		}
	}
}
