package auth

import (
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestTokenIssuer_IssueAndValidate(t *testing.T) {
	issuer, err := NewTokenIssuer("test-secret", time.Hour)
	if err != nil {
		t.Fatalf("Failed to create issuer: %v", err)
	}

	token, expiresAt, err := issuer.Issue("unity-client")
	if err != nil {
		t.Fatalf("Failed to issue token: %v", err)
	}
	if time.Until(expiresAt) <= 59*time.Minute {
		t.Errorf("Expected expiry about an hour out, got %v", expiresAt)
	}

	claims, err := issuer.Validate(token)
	if err != nil {
		t.Fatalf("Expected valid token, got %v", err)
	}
	if claims.ClientID != "unity-client" {
		t.Errorf("Expected client id unity-client, got %s", claims.ClientID)
	}
}

func TestTokenIssuer_Rejects(t *testing.T) {
	issuer, _ := NewTokenIssuer("test-secret", time.Hour)
	other, _ := NewTokenIssuer("other-secret", time.Hour)
	foreign, _, _ := other.Issue("unity-client")

	expired, _ := NewTokenIssuer("test-secret", time.Hour)
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	stale, _, _ := expired.Issue("unity-client")

	none, _ := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{ClientID: "x"}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)

	tests := []struct {
		name    string
		token   string
		wantErr error
	}{
		{"empty", "", ErrMissingToken},
		{"garbage", "not-a-token", ErrInvalidToken},
		{"wrong secret", foreign, ErrInvalidToken},
		{"expired", stale, ErrInvalidToken},
		{"unsigned", none, ErrInvalidToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := issuer.Validate(tt.token); !errors.Is(err, tt.wantErr) {
				t.Errorf("Expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestNewTokenIssuer(t *testing.T) {
	if _, err := NewTokenIssuer("", time.Hour); err == nil {
		t.Error("Expected error for empty secret")
	}
	issuer, err := NewTokenIssuer("s", 0)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if issuer.ttl != defaultTokenTTL {
		t.Errorf("Expected default ttl, got %v", issuer.ttl)
	}
	if _, _, err := issuer.Issue(""); err == nil {
		t.Error("Expected error for empty client id")
	}
}

func TestTokenFromRequest(t *testing.T) {
	tests := []struct {
		name   string
		url    string
		header string
		want   string
	}{
		{"bearer header", "/ws/speech/v1", "Bearer abc", "abc"},
		{"query parameter", "/ws/speech/v1?token=xyz", "", "xyz"},
		{"header wins", "/ws/speech/v1?token=xyz", "Bearer abc", "abc"},
		{"other scheme", "/ws/speech/v1", "Basic abc", ""},
		{"none", "/ws/speech/v1", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", tt.url, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			if got := TokenFromRequest(req); got != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, got)
			}
		})
	}
}
