package auth

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rentchain/escrow/internal/models"
)

// helper: подписывает proof ключом privKey
func signProof(privKey ed25519.PrivateKey, p WalletProof) WalletProof {
	msgHash := sha256.Sum256(ProofMessage(p.Domain, p.Timestamp, p.Nonce))
	p.Signature = hex.EncodeToString(ed25519.Sign(privKey, msgHash[:]))
	return p
}

func TestVerifyWalletProof_ValidSignature(t *testing.T) {
	pubKey, privKey, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatal(err)
	}
	now := time.Now()

	proof := signProof(privKey, WalletProof{
		PublicKey: hex.EncodeToString(pubKey),
		Timestamp: now.Unix(),
		Domain:    "app.rentchain.test",
		Nonce:     "test-nonce-12345",
	})

	addr, err := VerifyWalletProof(proof, []string{"app.rentchain.test"}, now)
	if err != nil {
		t.Fatalf("expected valid proof, got error: %v", err)
	}
	if addr != AddressFromPublicKey(pubKey) {
		t.Errorf("address = %s, want %s", addr, AddressFromPublicKey(pubKey))
	}
	if !strings.HasPrefix(addr.String(), "0x") || len(addr) != 42 {
		t.Errorf("malformed address %q", addr)
	}
}

func TestVerifyWalletProof_ExpiredTimestamp(t *testing.T) {
	pubKey, privKey, _ := ed25519.GenerateKey(nil)
	now := time.Now()

	proof := signProof(privKey, WalletProof{
		PublicKey: hex.EncodeToString(pubKey),
		Timestamp: now.Add(-10 * time.Minute).Unix(),
		Domain:    "test",
		Nonce:     "nonce",
	})

	if _, err := VerifyWalletProof(proof, nil, now); err == nil {
		t.Fatal("expected error for expired proof")
	}
}

func TestVerifyWalletProof_FutureTimestamp(t *testing.T) {
	pubKey, privKey, _ := ed25519.GenerateKey(nil)
	now := time.Now()

	proof := signProof(privKey, WalletProof{
		PublicKey: hex.EncodeToString(pubKey),
		Timestamp: now.Add(5 * time.Minute).Unix(),
		Domain:    "test",
		Nonce:     "nonce",
	})

	if _, err := VerifyWalletProof(proof, nil, now); err == nil {
		t.Fatal("expected error for future proof")
	}
}

func TestVerifyWalletProof_WrongDomain(t *testing.T) {
	pubKey, privKey, _ := ed25519.GenerateKey(nil)
	now := time.Now()

	proof := signProof(privKey, WalletProof{
		PublicKey: hex.EncodeToString(pubKey),
		Timestamp: now.Unix(),
		Domain:    "evil.com",
		Nonce:     "nonce",
	})

	if _, err := VerifyWalletProof(proof, []string{"good.com"}, now); err == nil {
		t.Fatal("expected error for wrong domain")
	}
}

func TestVerifyWalletProof_InvalidSignature(t *testing.T) {
	pubKey, _, _ := ed25519.GenerateKey(nil)

	proof := WalletProof{
		PublicKey: hex.EncodeToString(pubKey),
		Timestamp: time.Now().Unix(),
		Domain:    "test",
		Nonce:     "nonce",
		Signature: hex.EncodeToString(make([]byte, 64)), // нулевая подпись
	}

	if _, err := VerifyWalletProof(proof, nil, time.Now()); err == nil {
		t.Fatal("expected error for invalid signature")
	}
}

func TestVerifyWalletProof_TamperedNonce(t *testing.T) {
	pubKey, privKey, _ := ed25519.GenerateKey(nil)
	now := time.Now()

	proof := signProof(privKey, WalletProof{
		PublicKey: hex.EncodeToString(pubKey),
		Timestamp: now.Unix(),
		Domain:    "test",
		Nonce:     "nonce-a",
	})
	proof.Nonce = "nonce-b"

	if _, err := VerifyWalletProof(proof, nil, now); err == nil {
		t.Fatal("expected error for tampered nonce")
	}
}

func TestJWTRoundTrip(t *testing.T) {
	pubKey, _, _ := ed25519.GenerateKey(nil)
	addr := AddressFromPublicKey(pubKey)

	token, err := GenerateJWT("secret", addr, "operator", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	claims, err := ParseJWT("secret", token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.Address != addr || claims.Role != "operator" {
		t.Errorf("claims = %+v", claims)
	}

	if _, err := ParseJWT("other-secret", token); err == nil {
		t.Fatal("expected error for wrong secret")
	}

	expired, err := GenerateJWT("secret", addr, "", -time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	// A non-positive expiration falls back to 24h.
	if _, err := ParseJWT("secret", expired); err != nil {
		t.Fatalf("expected default expiration, got %v", err)
	}
}

func TestParseJWTRejectsForgedClaims(t *testing.T) {
	pubKey, _, _ := ed25519.GenerateKey(nil)
	addr := AddressFromPublicKey(pubKey)
	other := models.Address("0x00000000000000000000000000000000000000c0")
	now := time.Now()

	sign := func(method jwt.SigningMethod, key any, c Claims) string {
		t.Helper()
		s, err := jwt.NewWithClaims(method, c).SignedString(key)
		if err != nil {
			t.Fatal(err)
		}
		return s
	}
	base := jwt.RegisteredClaims{
		Subject:   addr.String(),
		Issuer:    tokenIssuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
	}

	mismatched := base
	mismatched.Subject = other.String()
	wrongIssuer := base
	wrongIssuer.Issuer = "someone-else"
	noExpiry := base
	noExpiry.ExpiresAt = nil

	tests := map[string]string{
		"subject mismatch": sign(jwt.SigningMethodHS256, []byte("secret"), Claims{Address: addr, RegisteredClaims: mismatched}),
		"wrong issuer":     sign(jwt.SigningMethodHS256, []byte("secret"), Claims{Address: addr, RegisteredClaims: wrongIssuer}),
		"no expiry":        sign(jwt.SigningMethodHS256, []byte("secret"), Claims{Address: addr, RegisteredClaims: noExpiry}),
		"hs512":            sign(jwt.SigningMethodHS512, []byte("secret"), Claims{Address: addr, RegisteredClaims: base}),
	}
	for name, token := range tests {
		if _, err := ParseJWT("secret", token); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("%s: err = %v, want ErrInvalidToken", name, err)
		}
	}
}
