package auth

import (
	"testing"
	"time"
)

func testTokens(t *testing.T) *Tokens {
	t.Helper()
	tk, err := NewTokens("test-secret", time.Hour, 24*time.Hour)
	if err != nil {
		t.Fatalf("NewTokens: %v", err)
	}
	return tk
}

func TestIssueAndParsePair(t *testing.T) {
	tk := testTokens(t)
	pair, err := tk.IssuePair("user-1", []string{"Admin", "admin", " viewer "})
	if err != nil {
		t.Fatalf("IssuePair: %v", err)
	}
	if pair.TokenType != "bearer" {
		t.Fatalf("token type = %q, want bearer", pair.TokenType)
	}
	if pair.ExpiresIn != 3600 {
		t.Fatalf("expires_in = %d, want 3600", pair.ExpiresIn)
	}

	claims, err := tk.ParseAccess(pair.AccessToken)
	if err != nil {
		t.Fatalf("ParseAccess: %v", err)
	}
	if claims.Subject != "user-1" {
		t.Fatalf("subject = %q", claims.Subject)
	}
	if len(claims.Roles) != 2 || claims.Roles[0] != "admin" || claims.Roles[1] != "viewer" {
		t.Fatalf("roles = %v, want deduped lowercase", claims.Roles)
	}

	refresh, err := tk.ParseRefresh(pair.RefreshToken)
	if err != nil {
		t.Fatalf("ParseRefresh: %v", err)
	}
	if refresh.Subject != "user-1" {
		t.Fatalf("refresh subject = %q", refresh.Subject)
	}
}

func TestParseRejectsWrongType(t *testing.T) {
	tk := testTokens(t)
	pair, err := tk.IssuePair("user-1", nil)
	if err != nil {
		t.Fatalf("IssuePair: %v", err)
	}
	if _, err := tk.ParseAccess(pair.RefreshToken); err == nil {
		t.Fatal("refresh token accepted as access token")
	}
	if _, err := tk.ParseRefresh(pair.AccessToken); err == nil {
		t.Fatal("access token accepted as refresh token")
	}
}

func TestParseRejectsExpired(t *testing.T) {
	issued := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	tk := testTokens(t).WithClock(func() time.Time { return issued })
	pair, err := tk.IssuePair("user-1", nil)
	if err != nil {
		t.Fatalf("IssuePair: %v", err)
	}
	tk.WithClock(func() time.Time { return issued.Add(2 * time.Hour) })
	if _, err := tk.ParseAccess(pair.AccessToken); err == nil {
		t.Fatal("expired access token accepted")
	}
}

func TestParseRejectsWrongSecret(t *testing.T) {
	tk := testTokens(t)
	pair, err := tk.IssuePair("user-1", nil)
	if err != nil {
		t.Fatalf("IssuePair: %v", err)
	}
	other, err := NewTokens("other-secret", time.Hour, 24*time.Hour)
	if err != nil {
		t.Fatalf("NewTokens: %v", err)
	}
	if _, err := other.ParseAccess(pair.AccessToken); err == nil {
		t.Fatal("token signed with a different secret accepted")
	}
}

func TestNewTokensValidation(t *testing.T) {
	if _, err := NewTokens("", time.Hour, time.Hour); err == nil {
		t.Fatal("empty secret accepted")
	}
	if _, err := NewTokens("s", 0, time.Hour); err == nil {
		t.Fatal("zero access TTL accepted")
	}
}
