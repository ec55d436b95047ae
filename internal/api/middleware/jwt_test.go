package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"codequery/internal/api/auth"

	"github.com/gin-gonic/gin"
)

const testCookie = "codequery_session"

func newRouter(tokens *auth.TokenService, mw gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/protected", mw, func(c *gin.Context) {
		if id, ok := auth.CurrentUserID(c); ok {
			c.JSON(http.StatusOK, gin.H{"userId": id})
			return
		}
		c.JSON(http.StatusOK, gin.H{"userId": nil})
	})
	return r
}

func TestRequireAuth_NoTokenRejected(t *testing.T) {
	tokens := auth.NewTokenService("secret", time.Hour, nil)
	r := newRouter(tokens, RequireAuth(tokens, testCookie))

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "Not authorized, no token") {
		t.Fatalf("unexpected body: %s", w.Body.String())
	}
}

func TestRequireAuth_InvalidTokenRejectedAndCookieCleared(t *testing.T) {
	tokens := auth.NewTokenService("secret", time.Hour, nil)
	r := newRouter(tokens, RequireAuth(tokens, testCookie))

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.AddCookie(&http.Cookie{Name: testCookie, Value: "tampered"})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	// invalid token gets 400, not 401: existing clients depend on it
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 with invalid token, got %d", w.Code)
	}
	cookie := w.Header().Get("Set-Cookie")
	if !strings.Contains(cookie, testCookie+"=;") && !strings.Contains(cookie, "Max-Age=0") {
		t.Fatalf("expected cookie cleared, got %q", cookie)
	}
}

func TestRequireAuth_ExpiredTokenRejected(t *testing.T) {
	expired := auth.NewTokenService("secret", -time.Minute, nil)
	token, err := expired.Issue(1)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	tokens := auth.NewTokenService("secret", time.Hour, nil)
	r := newRouter(tokens, RequireAuth(tokens, testCookie))

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.AddCookie(&http.Cookie{Name: testCookie, Value: token})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 with expired token, got %d", w.Code)
	}
}

func TestRequireAuth_ValidCookieToken(t *testing.T) {
	tokens := auth.NewTokenService("secret", time.Hour, nil)
	token, err := tokens.Issue(11)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	r := newRouter(tokens, RequireAuth(tokens, testCookie))
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.AddCookie(&http.Cookie{Name: testCookie, Value: token})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"userId":11`) {
		t.Fatalf("expected resolved identity, got %s", w.Body.String())
	}
}

func TestRequireAuth_BearerHeaderFallback(t *testing.T) {
	tokens := auth.NewTokenService("secret", time.Hour, nil)
	token, err := tokens.Issue(12)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	r := newRouter(tokens, RequireAuth(tokens, testCookie))
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 via bearer header, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"userId":12`) {
		t.Fatalf("expected resolved identity, got %s", w.Body.String())
	}
}

func TestOptionalAuth_NoTokenProceedsAnonymously(t *testing.T) {
	tokens := auth.NewTokenService("secret", time.Hour, nil)
	r := newRouter(tokens, OptionalAuth(tokens, testCookie))

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 anonymously, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"userId":null`) {
		t.Fatalf("expected anonymous identity, got %s", w.Body.String())
	}
}

func TestOptionalAuth_InvalidTokenProceedsAnonymously(t *testing.T) {
	tokens := auth.NewTokenService("secret", time.Hour, nil)
	r := newRouter(tokens, OptionalAuth(tokens, testCookie))

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.AddCookie(&http.Cookie{Name: testCookie, Value: "tampered"})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 with invalid token, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"userId":null`) {
		t.Fatalf("expected anonymous identity, got %s", w.Body.String())
	}
	cookie := w.Header().Get("Set-Cookie")
	if !strings.Contains(cookie, testCookie+"=;") && !strings.Contains(cookie, "Max-Age=0") {
		t.Fatalf("expected cookie cleared, got %q", cookie)
	}
}

func TestOptionalAuth_ValidTokenAttachesIdentity(t *testing.T) {
	tokens := auth.NewTokenService("secret", time.Hour, nil)
	token, err := tokens.Issue(21)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	r := newRouter(tokens, OptionalAuth(tokens, testCookie))
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.AddCookie(&http.Cookie{Name: testCookie, Value: token})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"userId":21`) {
		t.Fatalf("expected resolved identity, got %s", w.Body.String())
	}
}
