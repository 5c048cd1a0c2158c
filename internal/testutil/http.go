package testutil

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dalemusser/parley/internal/app/system/auth"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// TestUser returns an identity with a fresh id.
func TestUser(email string) auth.Identity {
	return auth.Identity{ID: primitive.NewObjectID(), Email: email}
}

// IdentityOf returns the identity of an existing user id.
func IdentityOf(id primitive.ObjectID, email string) auth.Identity {
	return auth.Identity{ID: id, Email: email}
}

// NewRequest creates an HTTP request for testing.
func NewRequest(method, target string) *http.Request {
	return httptest.NewRequest(method, target, nil)
}

// NewAuthenticatedRequest creates an HTTP request with an identity in
// context, bypassing the bearer middleware.
func NewAuthenticatedRequest(method, target string, body io.Reader, id auth.Identity) *http.Request {
	req := httptest.NewRequest(method, target, body)
	return auth.WithTestUser(req, id)
}

// ResponseRecorder wraps httptest.ResponseRecorder with helper methods.
type ResponseRecorder struct {
	*httptest.ResponseRecorder
}

// NewRecorder creates a new ResponseRecorder.
func NewRecorder() *ResponseRecorder {
	return &ResponseRecorder{httptest.NewRecorder()}
}

// AssertStatus checks the response status code.
func (r *ResponseRecorder) AssertStatus(t interface{ Errorf(string, ...any) }, expected int) {
	if r.Code != expected {
		t.Errorf("status code: got %d, want %d (body: %s)", r.Code, expected, r.Body.String())
	}
}

// AssertContains checks if the response body contains the expected string.
func (r *ResponseRecorder) AssertContains(t interface{ Errorf(string, ...any) }, expected string) {
	if !strings.Contains(r.Body.String(), expected) {
		t.Errorf("response body does not contain %q", expected)
	}
}

// DecodeJSON unmarshals the response body into v.
func (r *ResponseRecorder) DecodeJSON(t *testing.T, v any) {
	t.Helper()
	if err := json.Unmarshal(r.Body.Bytes(), v); err != nil {
		t.Fatalf("decode response %q: %v", r.Body.String(), err)
	}
}

// NewRecorderFrom wraps an existing recorder.
func NewRecorderFrom(rec *httptest.ResponseRecorder) *ResponseRecorder {
	return &ResponseRecorder{rec}
}
