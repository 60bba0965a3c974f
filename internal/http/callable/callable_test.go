package callable

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode(t *testing.T) {
	type in struct {
		Code string `json:"code"`
	}

	r := httptest.NewRequest(http.MethodPost, "/requestGithubTokens", strings.NewReader(`{"data":{"code":"abc123"}}`))
	var v in
	require.NoError(t, Decode(r, &v))
	assert.Equal(t, "abc123", v.Code)

	r = httptest.NewRequest(http.MethodPost, "/x", strings.NewReader(``))
	v = in{}
	require.NoError(t, Decode(r, &v))
	assert.Empty(t, v.Code)

	r = httptest.NewRequest(http.MethodPost, "/x", strings.NewReader(`{"data":`))
	err := Decode(r, &v)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestWriteError_HidesCause(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, ErrNotFound.WithDetail("no apple refresh token").WithCause(errors.New("secret provider text")))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `"status":"NOT_FOUND"`)
	assert.Contains(t, body, `"details":"no apple refresh token"`)
	assert.NotContains(t, body, "secret provider text")
}

func TestWriteError_UnknownIsInternal(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, errors.New("boom"))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), `"INTERNAL"`)
	assert.NotContains(t, rec.Body.String(), "boom")
}

func TestRoundTripClientSide(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteResult(rec, map[string]string{"token": "at"})
	var out struct {
		Token string `json:"token"`
	}
	require.NoError(t, DecodeResponse(rec.Result(), &out))
	assert.Equal(t, "at", out.Token)

	rec = httptest.NewRecorder()
	WriteError(rec, ErrUnauthenticated)
	err := DecodeResponse(rec.Result(), nil)
	var ce *Error
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, StatusUnauthenticated, ce.Status)
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestStatusHTTP(t *testing.T) {
	assert.Equal(t, 409, StatusAborted.HTTPStatus())
	assert.Equal(t, 429, StatusResourceExhausted.HTTPStatus())
	assert.Equal(t, 500, Status("WHATEVER").HTTPStatus())
}
