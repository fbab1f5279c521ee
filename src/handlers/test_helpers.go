package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/assafrot/api-keys-app/src/middleware"
	"github.com/assafrot/api-keys-app/src/repositories/memory"
)

// Test helpers for handler tests

// createTestContext creates a test Gin context with recorder
func createTestContext() (*httptest.ResponseRecorder, *gin.Context) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	return w, c
}

// assertStatusCode checks if response status code matches expected
func assertStatusCode(t *testing.T, w *httptest.ResponseRecorder, expectedCode int) {
	t.Helper()
	if w.Code != expectedCode {
		t.Errorf("expected status %d, got %d: %s", expectedCode, w.Code, w.Body.String())
	}
}

// assertJSONError checks if response contains expected error message
func assertJSONError(t *testing.T, w *httptest.ResponseRecorder, expectedError string) {
	t.Helper()
	var response map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if response["error"] != expectedError {
		t.Errorf("expected error '%s', got '%v'", expectedError, response["error"])
	}
}

// decodeBody unmarshals the recorder body into v
func decodeBody(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("failed to parse response %q: %v", w.Body.String(), err)
	}
}

// newMemoryStore returns a store closed at test end
func newMemoryStore(t *testing.T) *memory.Store {
	t.Helper()
	store := memory.NewStore()
	t.Cleanup(store.Close)
	return store
}

// asOwner stands in for OwnerAuthMiddleware: the X-Test-Owner header names the caller
func asOwner() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.OwnerIDKey, c.GetHeader("X-Test-Owner"))
		c.Next()
	}
}

// doJSON sends a request with an optional JSON body on behalf of owner
func doJSON(router http.Handler, method, path, owner string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if s, ok := body.(string); ok {
		buf.WriteString(s)
	} else if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if owner != "" {
		req.Header.Set("X-Test-Owner", owner)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// serve runs req through router and returns the recorder
func serve(router http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}
