package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-wms/internal/shared"
)

func decodeProblem(t *testing.T, rec *httptest.ResponseRecorder) ProblemDetail {
	t.Helper()
	var p ProblemDetail
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))
	return p
}

func TestRespondErrorStatusMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{shared.ErrAuthenticationRequired, http.StatusUnauthorized},
		{shared.ErrInvalidCredentials, http.StatusUnauthorized},
		{shared.ErrInsufficientPermission, http.StatusForbidden},
		{shared.NewPolicyViolation("Password is required"), http.StatusBadRequest},
		{fmt.Errorf("wrap: %w", shared.ErrNotFound), http.StatusNotFound},
		{shared.ErrDuplicate, http.StatusConflict},
		{shared.ErrInfrastructure, http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		RespondError(rec, tc.err)
		require.Equal(t, tc.status, rec.Code, tc.err.Error())
	}
}

func TestRespondErrorPolicyReasonIsVisible(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondError(rec, shared.NewPolicyViolation("Password must contain at least one number"))
	require.Equal(t, "Password must contain at least one number", decodeProblem(t, rec).Detail)
}

func TestRespondErrorForbiddenIsGeneric(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondError(rec, fmt.Errorf("missing ITEM_DELETE: %w", shared.ErrInsufficientPermission))
	p := decodeProblem(t, rec)
	require.Equal(t, "forbidden", p.Detail)
	require.NotContains(t, rec.Body.String(), "ITEM_DELETE")
}

func TestRespondErrorLockedCarriesRemainingTime(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondError(rec, &shared.AccountLockedError{Remaining: 14*time.Minute + time.Second})
	require.Equal(t, http.StatusLocked, rec.Code)
	require.Equal(t, "900", rec.Header().Get("Retry-After"))
	p := decodeProblem(t, rec)
	require.Equal(t, 900, p.RetryAfterSeconds)
	require.Equal(t, "account is locked, try again in 15 minutes", p.Detail)
}

func TestRespondErrorHidesInternalDetail(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondError(rec, errors.New("pq: relation users does not exist"))
	require.NotContains(t, rec.Body.String(), "relation")
}

type sample struct {
	Name string `json:"name" validate:"required"`
}

func TestDecodeAndValidate(t *testing.T) {
	v := validator.New()

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"x"}`))
	var ok sample
	require.NoError(t, DecodeAndValidate(req, v, &ok))
	require.Equal(t, "x", ok.Name)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{}`))
	var missing sample
	require.ErrorIs(t, DecodeAndValidate(req, v, &missing), shared.ErrValidation)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"x","extra":1}`))
	var unknown sample
	require.ErrorIs(t, DecodeAndValidate(req, v, &unknown), shared.ErrValidation)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`not json`))
	var broken sample
	require.ErrorIs(t, DecodeAndValidate(req, v, &broken), shared.ErrValidation)
}

func TestIsServerError(t *testing.T) {
	require.False(t, IsServerError(nil))
	require.False(t, IsServerError(shared.ErrInvalidCredentials))
	require.False(t, IsServerError(&shared.AccountLockedError{Remaining: time.Minute}))
	require.True(t, IsServerError(fmt.Errorf("x: %w", shared.ErrInfrastructure)))
	require.True(t, IsServerError(errors.New("boom")))
}
