package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/financeassistant/backend/internal/apperr"
)

func TestWriteErrorTyped(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, apperr.New(apperr.Conflict, "EMAIL_TAKEN", "An account with this email already exists."))

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "EMAIL_TAKEN", body.Error)
	assert.Equal(t, "An account with this email already exists.", body.Message)

	_, err := time.Parse(time.RFC3339, body.Timestamp)
	assert.NoError(t, err, "timestamp must be RFC3339")
}

func TestWriteErrorHidesInternalDetail(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, errors.New("pq: relation \"users\" does not exist"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	var body errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "INTERNAL_ERROR", body.Error)
	assert.NotContains(t, body.Message, "pq:")
	assert.NotContains(t, rec.Body.String(), "users")
}

func TestDecodeBodyRejectsGarbage(t *testing.T) {
	rec := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/", nil)

	var v struct{}
	ok := decodeBody(rec, r, &v)
	assert.False(t, ok)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
