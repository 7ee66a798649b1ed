package auth

import "testing"

func TestTokenRoundTrip(t *testing.T) {
	token, err := GenerateToken("user-1", "user@example.com", "secret")
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}

	claims, err := ValidateToken(token, "secret")
	if err != nil {
		t.Fatalf("ValidateToken failed: %v", err)
	}
	if claims.UserID != "user-1" {
		t.Errorf("expected userId user-1, got %s", claims.UserID)
	}
	if claims.Email != "user@example.com" {
		t.Errorf("expected email user@example.com, got %s", claims.Email)
	}
}

func TestValidateToken_WrongSecret(t *testing.T) {
	token, err := GenerateToken("user-1", "user@example.com", "secret")
	if err != nil {
		t.Fatal(err)
	}

	if _, err := ValidateToken(token, "other-secret"); err == nil {
		t.Fatal("expected validation failure with wrong secret")
	}
}

func TestValidateToken_Garbage(t *testing.T) {
	if _, err := ValidateToken("not.a.token", "secret"); err == nil {
		t.Fatal("expected validation failure for malformed token")
	}
}
