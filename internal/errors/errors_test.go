// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package errors

import (
	stderrors "errors"
	"net/http"
	"testing"
)

func TestKindHTTPStatus(t *testing.T) {
	cases := []struct {
		kind Kind
		want int
	}{
		{KindInvalidParameter, http.StatusBadRequest},
		{KindUnknownProject, http.StatusBadRequest},
		{KindUnsupportedLanguage, http.StatusBadRequest},
		{KindNotAvailable, http.StatusServiceUnavailable},
		{KindTimeout, http.StatusGatewayTimeout},
		{KindInternal, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := tc.kind.HTTPStatus(); got != tc.want {
			t.Errorf("%s: status = %d, want %d", tc.kind, got, tc.want)
		}
	}
}

func TestQueryErrorUnwrap(t *testing.T) {
	inner := stderrors.New("connection refused")
	err := NewNotAvailable("zoekt", inner)

	if !stderrors.Is(err, inner) {
		t.Error("expected errors.Is to find the wrapped error")
	}

	var qe *QueryError
	if !stderrors.As(error(err), &qe) {
		t.Fatal("expected errors.As to extract *QueryError")
	}
	if qe.Kind != KindNotAvailable {
		t.Errorf("kind = %v, want KindNotAvailable", qe.Kind)
	}
}

func TestUnknownProjectCarriesHints(t *testing.T) {
	err := NewUnknownProject("Nope", []string{"Game", "Engine"})
	if len(err.Hints) != 2 {
		t.Fatalf("hints = %v, want two entries", err.Hints)
	}

	payload := err.ToJSON()
	if payload["kind"] != "UnknownProject" {
		t.Errorf("kind = %v, want UnknownProject", payload["kind"])
	}
	if _, ok := payload["hints"]; !ok {
		t.Error("expected hints in JSON payload")
	}
}

func TestZeroKindIsInternal(t *testing.T) {
	var e QueryError
	if e.HTTPStatus() != http.StatusInternalServerError {
		t.Errorf("zero-value kind should map to 500, got %d", e.HTTPStatus())
	}
}
