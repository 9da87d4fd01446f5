package auth

import (
	"testing"
	"time"
)

func testJWTConfig() *JWTConfig {
	return &JWTConfig{
		Secret:   []byte("test-secret-change-me"),
		Issuer:   "heartline-test",
		Audience: "heartline-clients",
		TTL:      time.Hour,
	}
}

func TestGenerateAndValidateToken(t *testing.T) {
	cfg := testJWTConfig()

	token, err := GenerateToken(cfg, 7, "alice")
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}

	claims, err := ValidateToken(cfg, token)
	if err != nil {
		t.Fatalf("validate failed: %v", err)
	}
	if claims.UserID != 7 || claims.Username != "alice" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	if claims.Issuer != cfg.Issuer {
		t.Fatalf("issuer = %q", claims.Issuer)
	}
}

func TestValidateToken_RejectsExpired(t *testing.T) {
	cfg := testJWTConfig()
	cfg.TTL = -time.Minute

	token, err := GenerateToken(cfg, 7, "alice")
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}

	if _, err := ValidateToken(cfg, token); err == nil {
		t.Fatal("expected error for expired token")
	}
}

func TestValidateToken_RejectsWrongSecret(t *testing.T) {
	cfg := testJWTConfig()

	token, err := GenerateToken(cfg, 7, "alice")
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}

	other := testJWTConfig()
	other.Secret = []byte("a-different-secret-entirely")
	if _, err := ValidateToken(other, token); err == nil {
		t.Fatal("expected error for wrong secret")
	}
}

func TestValidateToken_RejectsWrongIssuerOrAudience(t *testing.T) {
	cfg := testJWTConfig()

	token, err := GenerateToken(cfg, 7, "alice")
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}

	badIssuer := testJWTConfig()
	badIssuer.Issuer = "someone-else"
	if _, err := ValidateToken(badIssuer, token); err == nil {
		t.Fatal("expected error for wrong issuer")
	}

	badAudience := testJWTConfig()
	badAudience.Audience = "someone-else"
	if _, err := ValidateToken(badAudience, token); err == nil {
		t.Fatal("expected error for wrong audience")
	}
}

func TestValidateToken_RejectsGarbage(t *testing.T) {
	cfg := testJWTConfig()

	if _, err := ValidateToken(cfg, "not.a.token"); err == nil {
		t.Fatal("expected error for malformed token")
	}
}

func TestHashAndComparePassword(t *testing.T) {
	hash, err := HashPassword("password123")
	if err != nil {
		t.Fatalf("hash failed: %v", err)
	}
	if hash == "password123" {
		t.Fatal("hash equals plain password")
	}
	if err := ComparePassword(hash, "password123"); err != nil {
		t.Fatalf("compare failed for correct password: %v", err)
	}
	if err := ComparePassword(hash, "wrong"); err == nil {
		t.Fatal("compare succeeded for wrong password")
	}
}
