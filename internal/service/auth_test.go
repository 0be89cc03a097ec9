package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/liableapp/liable/internal/repository"
	"github.com/liableapp/liable/internal/validation"
)

func TestAuthServiceRoundTrip(t *testing.T) {
	auth := NewAuthService("test-secret", time.Hour)

	token, expiry, err := auth.GenerateJWT(testPlanner())
	if err != nil {
		t.Fatalf("GenerateJWT() error = %v", err)
	}
	if time.Until(expiry) <= 0 {
		t.Errorf("expiry %v is in the past", expiry)
	}

	userID, err := auth.VerifyJWT(token)
	if err != nil {
		t.Fatalf("VerifyJWT() error = %v", err)
	}
	if userID != "planner-1" {
		t.Errorf("VerifyJWT() = %q, want planner-1", userID)
	}
}

func TestAuthServiceRejects(t *testing.T) {
	auth := NewAuthService("test-secret", time.Hour)

	other := NewAuthService("other-secret", time.Hour)
	forged, _, err := other.GenerateJWT(testPlanner())
	if err != nil {
		t.Fatalf("GenerateJWT() error = %v", err)
	}

	expiredAuth := NewAuthService("test-secret", time.Hour)
	expiredAuth.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	expired, _, err := expiredAuth.GenerateJWT(testPlanner())
	if err != nil {
		t.Fatalf("GenerateJWT() error = %v", err)
	}

	none := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"user_id": "planner-1"})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("SignedString() error = %v", err)
	}

	tests := map[string]string{
		"garbage":      "not-a-token",
		"wrong secret": forged,
		"expired":      expired,
		"unsigned":     unsigned,
	}

	for name, token := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := auth.VerifyJWT(token); !errors.Is(err, ErrInvalidToken) {
				t.Errorf("VerifyJWT() error = %v, want ErrInvalidToken", err)
			}
		})
	}
}

func TestUserServiceCreate(t *testing.T) {
	users := newMemUsers()
	svc := NewUserService(users)

	user, err := svc.Create(context.Background(), "Pat", "Planner", " Pat@Example.com ", "cus_42")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if user.Email != "pat@example.com" || !user.HasPaymentMethod() {
		t.Errorf("Create() = %+v", user)
	}

	_, err = svc.Create(context.Background(), "Pat", "Again", "pat@example.com", "")
	if !errors.Is(err, repository.ErrDuplicateEmail) {
		t.Errorf("Create(duplicate) error = %v, want ErrDuplicateEmail", err)
	}

	_, err = svc.Create(context.Background(), "", "", "bad", "")
	var errs validation.Errors
	if !errors.As(err, &errs) || len(errs) != 3 {
		t.Errorf("Create(invalid) error = %v, want three validation errors", err)
	}
}

func TestUserServiceCount(t *testing.T) {
	svc := NewUserService(newMemUsers(testPlanner()))

	count, err := svc.Count(context.Background())
	if err != nil || count != 1 {
		t.Errorf("Count() = %d, %v, want 1", count, err)
	}
}
