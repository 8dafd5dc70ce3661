package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestErrorTaxonomy(t *testing.T) {
	cause := errors.New("connection reset")

	tests := []struct {
		name   string
		err    error
		is     func(error) bool
		status int
	}{
		{"validation", NewValidationError("identifier too short"), IsValidation, http.StatusBadRequest},
		{"invalid state", NewInvalidStateError("request is not pending"), IsInvalidState, http.StatusConflict},
		{"not found", NewNotFoundError("request"), IsNotFound, http.StatusNotFound},
		{"persistence", NewPersistenceError("save request", cause), IsPersistence, http.StatusServiceUnavailable},
		{"unauthorized", NewUnauthorizedError(""), IsUnauthorized, http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := fmt.Errorf("ledger: %w", tt.err)
			assert.True(t, tt.is(wrapped), "predicate sees through wrapping")
			assert.Equal(t, tt.status, GetAppError(wrapped).HTTPStatus)
		})
	}

	assert.ErrorIs(t, NewPersistenceError("save request", cause), cause)
	assert.False(t, IsNotFound(cause))
	assert.Nil(t, GetAppError(cause))
}

func TestWrap(t *testing.T) {
	assert.Nil(t, Wrap(nil, "ignored"))

	err := Wrap(NewNotFoundError("relationship"), "remove")
	assert.True(t, IsNotFound(err))
	assert.Equal(t, "remove: relationship not found", GetAppError(err).Message)

	err = Wrapf(errors.New("boom"), "load %s", "session")
	assert.True(t, IsType(err, ErrorTypeInternal))
}

func TestErrorHandler(t *testing.T) {
	tests := []struct {
		name        string
		debug       bool
		err         error
		wantStatus  int
		wantType    string
		wantMessage string
	}{
		{
			name:        "app error",
			err:         NewInvalidStateError("request is not pending").WithCode("NOT_PENDING"),
			wantStatus:  http.StatusConflict,
			wantType:    "INVALID_STATE",
			wantMessage: "request is not pending",
		},
		{
			name:        "plain error hidden",
			err:         errors.New("secret detail"),
			wantStatus:  http.StatusInternalServerError,
			wantType:    "INTERNAL",
			wantMessage: "internal server error",
		},
		{
			name:        "plain error in debug",
			debug:       true,
			err:         errors.New("secret detail"),
			wantStatus:  http.StatusInternalServerError,
			wantType:    "INTERNAL",
			wantMessage: "secret detail",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewErrorHandler(zap.NewNop(), tt.debug)
			req := httptest.NewRequest(http.MethodGet, "/api/v1/requests", nil)
			req.Header.Set("X-Request-ID", "req-1")
			rec := httptest.NewRecorder()

			h.Handle(rec, req, tt.err)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

			var body ErrorResponse
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
			assert.True(t, body.Error)
			assert.Equal(t, tt.wantType, body.Type)
			assert.Equal(t, tt.wantMessage, body.Message)
			assert.Equal(t, "req-1", body.RequestID)
		})
	}
}

func TestErrorHandler_DebugStackTrace(t *testing.T) {
	h := NewErrorHandler(zap.NewNop(), true)
	rec := httptest.NewRecorder()

	h.Handle(rec, httptest.NewRequest(http.MethodGet, "/", nil), NewValidationError("bad"))

	var body ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Contains(t, body.Details, "stack_trace")
}
