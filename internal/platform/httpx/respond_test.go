package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRespondErrorMapsSentinels(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{err: fmt.Errorf("invoice: %w", ErrNotFound), status: http.StatusNotFound},
		{err: ErrDuplicate, status: http.StatusConflict},
		{err: ErrValidation, status: http.StatusUnprocessableEntity},
		{err: ErrConflict, status: http.StatusConflict},
		{err: ErrLocked, status: http.StatusLocked},
		{err: fmt.Errorf("%w: malformed JSON body", ErrBadRequest), status: http.StatusBadRequest},
		{err: errors.New("boom"), status: http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.err.Error(), func(t *testing.T) {
			rr := httptest.NewRecorder()
			RespondError(rr, tc.err)

			require.Equal(t, tc.status, rr.Code)
			require.Equal(t, "application/problem+json", rr.Header().Get("Content-Type"))
			var problem ProblemDetail
			require.NoError(t, json.NewDecoder(rr.Body).Decode(&problem))
			require.Equal(t, tc.status, problem.Status)
		})
	}
}

func TestRespondErrorHidesInternalDetail(t *testing.T) {
	rr := httptest.NewRecorder()
	RespondError(rr, errors.New("pq: password authentication failed"))
	require.NotContains(t, rr.Body.String(), "password")
}

func TestDecodeJSON(t *testing.T) {
	var target struct {
		Amount string `json:"amount"`
	}

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"amount":"10.00"}`))
	require.NoError(t, DecodeJSON(httptest.NewRecorder(), req, &target))
	require.Equal(t, "10.00", target.Amount)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"amount":"10.00","extra":1}`))
	require.Error(t, DecodeJSON(httptest.NewRecorder(), req, &target))

	oversized := `{"amount":"` + strings.Repeat("9", maxBodyBytes) + `"}`
	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(oversized))
	require.Error(t, DecodeJSON(httptest.NewRecorder(), req, &target))
}
