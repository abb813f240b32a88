// internal/auth/bearer_test.go
package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAuthorized(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/", nil)
	assert.False(t, Authorized(r, "s3cret"))

	r.Header.Set("Authorization", "Bearer s3cret")
	assert.True(t, Authorized(r, "s3cret"))
	assert.False(t, Authorized(r, "other"))
	assert.False(t, Authorized(r, ""), "empty secret never matches")

	r.Header.Set("Authorization", "bearer s3cret")
	assert.True(t, Authorized(r, "s3cret"))

	r.Header.Set("Authorization", "Basic s3cret")
	assert.False(t, Authorized(r, "s3cret"))
}

func TestRequire(t *testing.T) {
	h := Require("tok")(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.JSONEq(t, `{"success":false,"message":"Unauthorized"}`, w.Body.String())

	w = httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer tok")
	h.ServeHTTP(w, r)
	assert.Equal(t, http.StatusTeapot, w.Code)
}
