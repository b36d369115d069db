package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/luciancaetano/sessnet"
)

func TestMintAndVerify(t *testing.T) {
	t.Parallel()

	v := NewJWTVerifier([]byte("secret"), "sessnet")
	want := sessnet.TokenPayload{UserID: "A", PeerType: "player", SessionID: "S"}

	token, err := v.Mint(want, time.Minute)
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}

	got, err := v.VerifyToken(token)
	if err != nil {
		t.Fatalf("VerifyToken: %v", err)
	}
	if got.Payload != want {
		t.Errorf("payload = %+v, want %+v", got.Payload, want)
	}
	if got.Header["alg"] != "HS256" {
		t.Errorf("header alg = %v", got.Header["alg"])
	}
}

func TestVerifyRejects(t *testing.T) {
	t.Parallel()

	v := NewJWTVerifier([]byte("secret"), "sessnet")
	other := NewJWTVerifier([]byte("other"), "sessnet")
	wrongIssuer := NewJWTVerifier([]byte("secret"), "someone-else")

	expired := mintExpired(t, []byte("secret"), "sessnet")
	forged, _ := other.Mint(sessnet.TokenPayload{UserID: "A"}, time.Minute)
	foreign, _ := wrongIssuer.Mint(sessnet.TokenPayload{UserID: "A"}, time.Minute)
	anonymous, _ := v.Mint(sessnet.TokenPayload{}, time.Minute)

	tests := []struct {
		name  string
		token string
	}{
		{"garbage", "not-a-token"},
		{"empty", ""},
		{"wrong secret", forged},
		{"wrong issuer", foreign},
		{"expired", expired},
		{"missing user", anonymous},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if _, err := v.VerifyToken(tt.token); !errors.Is(err, ErrInvalidToken) {
				t.Errorf("VerifyToken() error = %v, want ErrInvalidToken", err)
			}
		})
	}
}

func mintExpired(t *testing.T, secret []byte, issuer string) string {
	t.Helper()
	claims := Claims{
		UserID: "A",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		t.Fatal(err)
	}
	return token
}
