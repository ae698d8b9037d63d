package auth

import (
	"testing"

	"classboard/pkg/types"
)

func TestGenerateAndValidate(t *testing.T) {
	issuer := NewTokenIssuer("test-secret")

	token, err := issuer.Generate("u1", types.RoleAdmin)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if token == "" {
		t.Fatal("Expected a non-empty token")
	}

	claims, err := issuer.Validate(token)
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if claims.UserID != "u1" || claims.Role != types.RoleAdmin {
		t.Errorf("Unexpected claims: %+v", claims)
	}
}

func TestValidateRejectsWrongSecret(t *testing.T) {
	token, err := NewTokenIssuer("secret-a").Generate("u1", types.RoleStudent)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	if _, err := NewTokenIssuer("secret-b").Validate(token); err != ErrInvalidToken {
		t.Errorf("Expected ErrInvalidToken, got %v", err)
	}
}

func TestValidateRejectsGarbage(t *testing.T) {
	issuer := NewTokenIssuer("test-secret")

	for _, token := range []string{"", "not.a.token", "aaaa.bbbb.cccc"} {
		if _, err := issuer.Validate(token); err != ErrInvalidToken {
			t.Errorf("Expected ErrInvalidToken for %q, got %v", token, err)
		}
	}
}

func TestValidateRejectsTampering(t *testing.T) {
	issuer := NewTokenIssuer("test-secret")

	token, err := issuer.Generate("u1", types.RoleStudent)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	tampered := token[:len(token)-2] + "xx"
	if _, err := issuer.Validate(tampered); err != ErrInvalidToken {
		t.Errorf("Expected ErrInvalidToken for tampered token, got %v", err)
	}
}
