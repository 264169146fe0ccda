package httputil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteErrorBody(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteErrorBody(rec, http.StatusUnprocessableEntity, ErrorBody{Code: "INVALID_CONTACT", Message: "bad phone", Notice: "請輸入", Field: "phone"})

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, "phone", resp.Error.Field)
	assert.Equal(t, "請輸入", resp.Error.Notice)
}

func TestReadJSONRejectsUnknownFields(t *testing.T) {
	var dst struct {
		Slug string `json:"slug"`
	}
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"slug":"a","extra":1}`))
	assert.Error(t, ReadJSON(httptest.NewRecorder(), req, &dst))

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"slug":"a"}`))
	require.NoError(t, ReadJSON(httptest.NewRecorder(), req, &dst))
	assert.Equal(t, "a", dst.Slug)
}
