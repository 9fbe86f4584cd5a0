package services

import (
	"testing"
	"time"

	"github.com/HamzaArc/Tontine-app-chat/internal/models"
)

func TestJWTRoundTrip(t *testing.T) {
	svc := NewJWTService("test-secret", time.Hour)
	user := &models.User{ID: 42, Email: "alice@example.com"}
	user.Name = "Alice"

	token, err := svc.Generate(user)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	claims, err := svc.Validate(token)
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if claims.UserID != 42 {
		t.Errorf("user_id: expected 42, got %d", claims.UserID)
	}
	if claims.Email != "alice@example.com" {
		t.Errorf("email: expected alice@example.com, got %s", claims.Email)
	}
}

func TestJWTRejections(t *testing.T) {
	svc := NewJWTService("test-secret", time.Hour)
	user := &models.User{ID: 1, Email: "bob@example.com"}

	t.Run("expired token", func(t *testing.T) {
		expired := NewJWTService("test-secret", -time.Minute)
		token, err := expired.Generate(user)
		if err != nil {
			t.Fatalf("Generate failed: %v", err)
		}
		if _, err := svc.Validate(token); err == nil {
			t.Error("expected expired token to fail validation")
		}
	})

	t.Run("wrong secret", func(t *testing.T) {
		other := NewJWTService("other-secret", time.Hour)
		token, err := other.Generate(user)
		if err != nil {
			t.Fatalf("Generate failed: %v", err)
		}
		if _, err := svc.Validate(token); err == nil {
			t.Error("expected foreign-secret token to fail validation")
		}
	})

	t.Run("tampered token", func(t *testing.T) {
		token, err := svc.Generate(user)
		if err != nil {
			t.Fatalf("Generate failed: %v", err)
		}
		if _, err := svc.Validate(token + "x"); err == nil {
			t.Error("expected tampered token to fail validation")
		}
	})

	t.Run("garbage string", func(t *testing.T) {
		if _, err := svc.Validate("not-a-token"); err == nil {
			t.Error("expected garbage to fail validation")
		}
	})
}
