package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/stratodrive/stratodrive/internal/model"
)

func TestTokenRoundTrip(t *testing.T) {
	svc := NewService(nil, "test-secret")
	user := &model.User{ID: "u1", Email: "alice@example.com", Role: model.RoleWriter}

	token, err := svc.IssueToken(user)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	claims, err := svc.ValidateToken(token)
	if err != nil {
		t.Fatalf("validate token: %v", err)
	}
	if claims.UserID != "u1" {
		t.Errorf("UserID = %q, want u1", claims.UserID)
	}
	if claims.Email != "alice@example.com" {
		t.Errorf("Email = %q, want alice@example.com", claims.Email)
	}
	if claims.Role != model.RoleWriter {
		t.Errorf("Role = %q, want writer", claims.Role)
	}
}

func TestTokenWrongSecretRejected(t *testing.T) {
	issuer := NewService(nil, "secret-a")
	verifier := NewService(nil, "secret-b")

	token, err := issuer.IssueToken(&model.User{ID: "u1", Role: model.RoleReader})
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	if _, err := verifier.ValidateToken(token); err == nil {
		t.Fatal("token signed with another secret should be rejected")
	}
}

func TestTokenGarbageRejected(t *testing.T) {
	svc := NewService(nil, "test-secret")
	if _, err := svc.ValidateToken("not.a.token"); err == nil {
		t.Fatal("garbage token should be rejected")
	}
}

func TestCallerFromContext(t *testing.T) {
	caller := model.Caller{ID: "u1", Email: "a@b.c", Role: model.RoleAdmin}
	ctx := WithCaller(context.Background(), caller)

	got, err := CallerFrom(ctx)
	if err != nil {
		t.Fatalf("CallerFrom: %v", err)
	}
	if got != caller {
		t.Errorf("got %+v, want %+v", got, caller)
	}
}

func TestCallerFromMissing(t *testing.T) {
	_, err := CallerFrom(context.Background())
	if !errors.Is(err, model.ErrAuthenticationRequired) {
		t.Fatalf("got %v, want ErrAuthenticationRequired", err)
	}
}
