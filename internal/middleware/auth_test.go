package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/miryas-ai/backend/internal/auth"
)

func protectedHandler(t *testing.T, wantUserID int64) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := auth.ClaimsFromContext(r.Context())
		if !ok {
			t.Error("claims missing from request context")
			return
		}
		if claims.UserID != wantUserID {
			t.Errorf("claims.UserID = %d, want %d", claims.UserID, wantUserID)
		}
		w.WriteHeader(http.StatusOK)
	})
}

func TestRequireAuthMissingHeader(t *testing.T) {
	verifier, _ := auth.NewVerifier("test-secret")
	handler := RequireAuth(verifier, zap.NewNop())(protectedHandler(t, 0))

	req := httptest.NewRequest(http.MethodGet, "/api/user/tier", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.Code)
	}
}

func TestRequireAuthMalformedHeader(t *testing.T) {
	verifier, _ := auth.NewVerifier("test-secret")
	handler := RequireAuth(verifier, zap.NewNop())(protectedHandler(t, 0))

	for _, header := range []string{"token-without-scheme", "Basic abc", "Bearer "} {
		req := httptest.NewRequest(http.MethodGet, "/api/user/tier", nil)
		req.Header.Set("Authorization", header)
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, req)

		if resp.Code != http.StatusUnauthorized {
			t.Fatalf("header %q: status = %d, want 401", header, resp.Code)
		}
	}
}

func TestRequireAuthInvalidToken(t *testing.T) {
	verifier, _ := auth.NewVerifier("test-secret")
	other, _ := auth.NewVerifier("other-secret")
	foreign, err := other.IssueToken(1)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}

	handler := RequireAuth(verifier, zap.NewNop())(protectedHandler(t, 0))
	req := httptest.NewRequest(http.MethodGet, "/api/user/tier", nil)
	req.Header.Set("Authorization", "Bearer "+foreign)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.Code)
	}
}

func TestRequireAuthValidToken(t *testing.T) {
	verifier, _ := auth.NewVerifier("test-secret")
	token, err := verifier.IssueToken(25337)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}

	handler := RequireAuth(verifier, zap.NewNop())(protectedHandler(t, 25337))
	req := httptest.NewRequest(http.MethodGet, "/api/user/tier", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.Code)
	}
}
