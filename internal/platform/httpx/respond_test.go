package httpx

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRespondErrorEnvelope(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondError(rec, nil, NotFound("debt %s not found", "abc"))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body struct {
		Error Error `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, CodeNotFound, body.Error.Code)
	assert.Equal(t, "debt abc not found", body.Error.Message)
}

func TestRespondErrorMasksInternal(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondError(rec, nil, errors.New("pq: connection refused"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "connection refused")
	assert.Contains(t, rec.Body.String(), "internal server error")
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusForbidden, StatusFor(CodeForbidden))
	assert.Equal(t, http.StatusConflict, StatusFor(CodeConflict))
	assert.Equal(t, http.StatusUnauthorized, StatusFor(CodeUnauthorized))
	assert.Equal(t, http.StatusPreconditionFailed, StatusFor(CodePreconditionFailed))
	assert.Equal(t, http.StatusInternalServerError, StatusFor(Code("SOMETHING_NEW")))
}

func TestDecodeJSONRejectsUnknownFields(t *testing.T) {
	var target struct {
		Name string `json:"name"`
	}
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"a","bogus":1}`))
	err := DecodeJSON(req, &target)
	require.Error(t, err)
	assert.Equal(t, CodeBadRequest, AsError(err).Code)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"a"}`))
	require.NoError(t, DecodeJSON(req, &target))
	assert.Equal(t, "a", target.Name)
}

func TestValidateReportsFieldPaths(t *testing.T) {
	type item struct {
		Title string `validate:"required"`
	}
	type payload struct {
		Email string `validate:"required,email"`
		Item  item
	}
	v := validator.New()

	err := Validate(v, payload{Email: "not-an-email"})
	require.Error(t, err)
	apiErr := AsError(err)
	assert.Equal(t, CodeBadRequest, apiErr.Code)
	require.Len(t, apiErr.Fields, 2)

	paths := []string{apiErr.Fields[0].Path, apiErr.Fields[1].Path}
	assert.Contains(t, paths, "Email")
	assert.Contains(t, paths, "Item.Title")

	require.NoError(t, Validate(v, payload{Email: "a@example.com", Item: item{Title: "x"}}))
}
