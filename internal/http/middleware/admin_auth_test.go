package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func serveAdmin(t *testing.T, secret, authHeader string) (*httptest.ResponseRecorder, bool) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/admin/leads/521", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	called := false
	AdminJWT(secret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		claims, ok := AdminClaimsFromContext(r.Context())
		if !ok || claims.Subject != "laura" {
			t.Errorf("expected admin claims in context, got %#v", claims)
		}
		w.WriteHeader(http.StatusOK)
	})).ServeHTTP(rec, req)
	return rec, called
}

func TestAdminJWTMissingSecret(t *testing.T) {
	rec, called := serveAdmin(t, "", "Bearer whatever")
	if rec.Code != http.StatusUnauthorized || called {
		t.Fatalf("expected 401 without secret, got %d", rec.Code)
	}
}

func TestAdminJWTMissingHeader(t *testing.T) {
	rec, _ := serveAdmin(t, "secret", "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status %d, got %d", http.StatusUnauthorized, rec.Code)
	}
}

func TestAdminJWTWrongSecret(t *testing.T) {
	token, err := IssueAdminToken("wrong", "laura", time.Minute, time.Now())
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	rec, _ := serveAdmin(t, "secret", "Bearer "+token)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status %d, got %d", http.StatusUnauthorized, rec.Code)
	}
}

func TestAdminJWTExpired(t *testing.T) {
	token, err := IssueAdminToken("secret", "laura", time.Minute, time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	rec, _ := serveAdmin(t, "secret", "Bearer "+token)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected expired token to fail, got %d", rec.Code)
	}
}

func TestAdminJWTRejectsForeignIssuer(t *testing.T) {
	claims := jwt.RegisteredClaims{
		Issuer:    "someone-else",
		Subject:   "laura",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	rec, _ := serveAdmin(t, "secret", "Bearer "+token)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected foreign issuer to fail, got %d", rec.Code)
	}
}

func TestAdminJWTValidToken(t *testing.T) {
	token, err := IssueAdminToken("secret", "laura", 5*time.Minute, time.Now())
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	rec, called := serveAdmin(t, "secret", "Bearer "+token)
	if !called || rec.Code != http.StatusOK {
		t.Fatalf("expected handler to be called, got %d", rec.Code)
	}
}
