package validator

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type hookRequest struct {
	Name   string   `json:"name" validate:"required,max=20"`
	URL    string   `json:"url" validate:"required,http_url"`
	Events []string `json:"events" validate:"required,min=1,dive,color_name"`
}

func TestDecodeJSON(t *testing.T) {
	RegisterString("color_name", func(s string) bool { return s == "RED" || s == "BLUE" })

	t.Run("success", func(t *testing.T) {
		r := httptest.NewRequest("POST", "/", strings.NewReader(`{"name":"a","url":"https://example.com/h","events":["RED"]}`))
		var req hookRequest
		require.NoError(t, DecodeJSON(r, &req))
		assert.Equal(t, "https://example.com/h", req.URL)
	})

	t.Run("field errors use json names", func(t *testing.T) {
		r := httptest.NewRequest("POST", "/", strings.NewReader(`{"name":"","url":"ftp://example.com","events":["GREEN"]}`))
		var req hookRequest
		err := DecodeJSON(r, &req)

		var verr *Error
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, "validation failed", verr.Message)
		assert.Equal(t, "is required", verr.Fields["name"])
		assert.Equal(t, "must be an absolute http or https URL", verr.Fields["url"])
		assert.Contains(t, verr.Fields, "events[0]")
	})

	t.Run("unknown fields are rejected", func(t *testing.T) {
		r := httptest.NewRequest("POST", "/", strings.NewReader(`{"name":"a","bogus":1}`))
		var req hookRequest
		err := DecodeJSON(r, &req)

		var verr *Error
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, "invalid request body", verr.Message)
	})
}
