package security_test

import (
	"testing"

	"github.com/angelmondragon/techloans-backend/pkg/config"
	"github.com/angelmondragon/techloans-backend/pkg/security"
)

func TestHashAndVerifyPassword(t *testing.T) {
	cfg := config.PasswordConfig{
		ArgonMemoryKB:    32768,
		ArgonTime:        1,
		ArgonParallelism: 1,
		ArgonSaltLen:     16,
		ArgonKeyLen:      32,
	}

	hash, err := security.HashPassword("very-secure-password", cfg)
	if err != nil {
		t.Fatalf("HashPassword returned error: %v", err)
	}
	if hash == "" {
		t.Fatal("HashPassword returned empty string")
	}

	ok, err := security.VerifyPassword("very-secure-password", hash)
	if err != nil {
		t.Fatalf("VerifyPassword returned error for valid hash: %v", err)
	}
	if !ok {
		t.Fatal("VerifyPassword failed for the correct password")
	}

	ok, err = security.VerifyPassword("bogus-password", hash)
	if err != nil {
		t.Fatalf("VerifyPassword returned error for invalid password: %v", err)
	}
	if ok {
		t.Fatal("VerifyPassword returned true for incorrect password")
	}
}

func TestVerifyPasswordBadHash(t *testing.T) {
	if _, err := security.VerifyPassword("irrelevant", "not-a-hash"); err == nil {
		t.Fatal("expected error for malformed hash")
	}
}

func TestValidatePassword(t *testing.T) {
	cases := map[string]bool{
		"short1":          false,
		"onlyletterslong": false,
		"1234567890":      false,
		"lends2students":  true,
	}
	for password, ok := range cases {
		err := security.ValidatePassword(password)
		if ok && err != nil {
			t.Fatalf("expected %q to pass, got %v", password, err)
		}
		if !ok && err == nil {
			t.Fatalf("expected %q to fail", password)
		}
	}
}

func TestGenerateTempPasswordLength(t *testing.T) {
	pw, err := security.GenerateTempPassword(14)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pw) != 14 {
		t.Fatalf("expected 14 characters, got %d", len(pw))
	}
	if _, err := security.GenerateTempPassword(0); err == nil {
		t.Fatal("expected error for zero length")
	}
}
