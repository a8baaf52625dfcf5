package utils

import (
	"testing"
	"time"
)

func setTokenEnv(t *testing.T) {
	t.Setenv("JWT_ACCESS_KEY", "test-access-key")
	t.Setenv("JWT_ACCESS_EXPIRE", "15")
	t.Setenv("JWT_REFRESH_KEY", "test-refresh-key")
	t.Setenv("JWT_REFRESH_EXPIRE", "720")
}

func TestGenerateAndExtractTokens(t *testing.T) {
	setTokenEnv(t)

	tokens, err := GenerateTokens("42", "teacher", true)
	if err != nil {
		t.Fatalf("GenerateTokens: %v", err)
	}
	if tokens.Access == "" || tokens.Refresh == "" {
		t.Fatal("empty token returned")
	}

	meta, err := CheckAndExtractTokenMetadata(tokens.Access, "JWT_ACCESS_KEY")
	if err != nil {
		t.Fatalf("CheckAndExtractTokenMetadata: %v", err)
	}
	if meta.Id != "42" {
		t.Errorf("id = %q, want %q", meta.Id, "42")
	}
	if meta.Role != "teacher" {
		t.Errorf("role = %q, want %q", meta.Role, "teacher")
	}
	if !meta.Otp {
		t.Error("otp claim lost")
	}
	if exp := time.Unix(meta.Exp, 0); exp.Before(time.Now()) {
		t.Errorf("token already expired at %v", exp)
	}
}

func TestExtractRejectsWrongKey(t *testing.T) {
	setTokenEnv(t)

	tokens, err := GenerateTokens("42", "student", false)
	if err != nil {
		t.Fatalf("GenerateTokens: %v", err)
	}

	if _, err := CheckAndExtractTokenMetadata(tokens.Access, "JWT_REFRESH_KEY"); err == nil {
		t.Fatal("access token verified with the refresh key")
	}
}
