package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	s, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.APIPrefix != "/api/v1" {
		t.Fatalf("APIPrefix = %q", s.APIPrefix)
	}
	if s.Port != 8000 {
		t.Fatalf("Port = %d", s.Port)
	}
	if s.AccessTokenTTL != time.Hour {
		t.Fatalf("AccessTokenTTL = %v", s.AccessTokenTTL)
	}
	if s.RefreshTokenTTL != 30*24*time.Hour {
		t.Fatalf("RefreshTokenTTL = %v", s.RefreshTokenTTL)
	}
	if s.RateLimitPerMinute != 100 {
		t.Fatalf("RateLimitPerMinute = %d", s.RateLimitPerMinute)
	}
	if !s.IsDevelopment() || s.IsProduction() {
		t.Fatalf("environment helpers broken for %q", s.Environment)
	}
}

func TestListParsing(t *testing.T) {
	t.Setenv("BACKEND_CORS_ORIGINS", "http://a.example, http://b.example ,")
	s, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(s.CORSOrigins) != 2 {
		t.Fatalf("CORSOrigins = %v", s.CORSOrigins)
	}
	if s.CORSOrigins[1] != "http://b.example" {
		t.Fatalf("CORSOrigins[1] = %q", s.CORSOrigins[1])
	}
}

func TestProductionRequiresSecret(t *testing.T) {
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("SECRET_KEY", "")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for missing SECRET_KEY in production")
	}
}

func TestSecretFallbacks(t *testing.T) {
	t.Setenv("SECRET_KEY", "topsecret")
	t.Setenv("JWT_SECRET_KEY", "")
	s, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.JWTSecret != "topsecret" {
		t.Fatalf("JWTSecret = %q", s.JWTSecret)
	}
	if s.SessionSecret != "topsecret" {
		t.Fatalf("SessionSecret = %q", s.SessionSecret)
	}
}

func TestAddr(t *testing.T) {
	t.Setenv("HOST", "127.0.0.1")
	t.Setenv("PORT", "9090")
	s, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.Addr() != "127.0.0.1:9090" {
		t.Fatalf("Addr = %q", s.Addr())
	}
}
