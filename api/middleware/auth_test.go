package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	pkgauth "github.com/rmoralesdev/contentmint-backend/pkg/auth"
	"github.com/rmoralesdev/contentmint-backend/pkg/config"
	"github.com/rmoralesdev/contentmint-backend/pkg/enums"
)

func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{
		Secret:            "test-secret-test-secret-test-secret",
		Issuer:            "contentmint-test",
		ExpirationMinutes: 15,
	}
}

func TestAuthRejectsMissingHeader(t *testing.T) {
	mw := Auth(testJWTConfig(), nil)
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("handler should not run")
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/transactions", nil)
	resp := httptest.NewRecorder()
	mw(handler).ServeHTTP(resp, req)

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestAuthRejectsGarbageToken(t *testing.T) {
	mw := Auth(testJWTConfig(), nil)
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("handler should not run")
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/transactions", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	resp := httptest.NewRecorder()
	mw(handler).ServeHTTP(resp, req)

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestAuthSeedsContext(t *testing.T) {
	cfg := testJWTConfig()
	userID := uuid.New()
	wallet := "0xbuyer"
	token, err := pkgauth.MintAccessToken(cfg, time.Now(), pkgauth.AccessTokenPayload{
		UserID:        userID,
		Role:          enums.UserRoleMember,
		WalletAddress: &wallet,
	})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}

	mw := Auth(cfg, nil)
	var gotUser, gotRole, gotWallet string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser = UserIDFromContext(r.Context())
		gotRole = RoleFromContext(r.Context())
		gotWallet = WalletFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/transactions", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	mw(handler).ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if gotUser != userID.String() {
		t.Fatalf("expected user %s got %q", userID, gotUser)
	}
	if gotRole != string(enums.UserRoleMember) {
		t.Fatalf("unexpected role %q", gotRole)
	}
	if gotWallet != "0xbuyer" {
		t.Fatalf("unexpected wallet %q", gotWallet)
	}
}
