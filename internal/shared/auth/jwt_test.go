package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestSignAndVerify(t *testing.T) {
	secret := []byte("s3cret")
	token, err := SignJWT(secret, OperatorClaims{Name: "Kim", Role: "agent", RegisteredClaims: jwt.RegisteredClaims{Subject: "op-7"}})
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	claims, err := VerifyJWT(secret, token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.Subject != "op-7" || claims.Name != "Kim" || claims.Role != "agent" {
		t.Fatalf("unexpected claims %+v", claims)
	}
	if claims.ExpiresAt == nil || claims.ExpiresAt.Time.Before(time.Now()) {
		t.Fatalf("expected default expiry in the future")
	}
}

func TestVerifyRejects(t *testing.T) {
	secret := []byte("s3cret")
	expired, _ := SignJWT(secret, OperatorClaims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   "op-1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
	}})
	good, _ := SignJWT(secret, OperatorClaims{RegisteredClaims: jwt.RegisteredClaims{Subject: "op-1"}})
	noneAlg, _ := jwt.NewWithClaims(jwt.SigningMethodNone, OperatorClaims{RegisteredClaims: jwt.RegisteredClaims{Subject: "op-1"}}).SignedString(jwt.UnsafeAllowNoneSignatureType)

	tests := []struct {
		name   string
		secret []byte
		token  string
	}{
		{name: "expired", secret: secret, token: expired},
		{name: "wrong secret", secret: []byte("other"), token: good},
		{name: "none alg", secret: secret, token: noneAlg},
		{name: "garbage", secret: secret, token: "a.b.c"},
	}
	for _, tt := range tests {
		if _, err := VerifyJWT(tt.secret, tt.token); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("%s: expected ErrInvalidToken, got %v", tt.name, err)
		}
	}
	if _, err := SignJWT(secret, OperatorClaims{}); err == nil {
		t.Fatalf("expected missing subject to fail")
	}
}

func TestSecret(t *testing.T) {
	if _, err := Secret("production", ""); err == nil {
		t.Fatalf("expected production without secret to fail")
	}
	got, err := Secret("dev", "")
	if err != nil || string(got) != "dev-secret" {
		t.Fatalf("unexpected dev secret %q %v", got, err)
	}
}
