package services

import (
	"context"
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/hex"
	"testing"
	"time"

	"github.com/rentchain/escrow/internal/auth"
	"github.com/rentchain/escrow/internal/rbac"
	"github.com/rentchain/escrow/internal/repositories"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func signedProof(t *testing.T, priv ed25519.PrivateKey, nonce string, at time.Time) auth.WalletProof {
	t.Helper()
	p := auth.WalletProof{
		PublicKey: hex.EncodeToString(priv.Public().(ed25519.PublicKey)),
		Timestamp: at.Unix(),
		Domain:    "app.rentchain.test",
		Nonce:     nonce,
	}
	h := sha256.Sum256(auth.ProofMessage(p.Domain, p.Timestamp, p.Nonce))
	p.Signature = hex.EncodeToString(ed25519.Sign(priv, h[:]))
	return p
}

func TestSessionChallengeIsSingleUse(t *testing.T) {
	ctx := context.Background()
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	svc := NewSessionService(repositories.NewMemoryNonceStore(), SessionConfig{
		JWTSecret:      "s3cret",
		JWTExpiration:  time.Hour,
		AllowedDomains: []string{"app.rentchain.test"},
		Operator:       auth.AddressFromPublicKey(pub),
	}, zap.NewNop())

	ch, err := svc.IssueChallenge(ctx)
	require.NoError(t, err)
	require.Len(t, ch.Nonce, 32)

	proof := signedProof(t, priv, ch.Nonce, time.Now())
	sess, err := svc.Verify(ctx, proof)
	require.NoError(t, err)
	require.Equal(t, auth.AddressFromPublicKey(pub), sess.Address)
	require.Equal(t, rbac.RoleOperator, sess.Role)

	claims, err := auth.ParseJWT("s3cret", sess.Token)
	require.NoError(t, err)
	require.Equal(t, sess.Address, claims.Address)

	_, err = svc.Verify(ctx, proof)
	require.ErrorIs(t, err, ErrUnauthorized)
}

func TestSessionRejectsUnknownNonceAndBadSignature(t *testing.T) {
	ctx := context.Background()
	_, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	nonces := repositories.NewMemoryNonceStore()
	svc := NewSessionService(nonces, SessionConfig{JWTSecret: "s"}, zap.NewNop())

	_, err = svc.Verify(ctx, signedProof(t, priv, "not-issued", time.Now()))
	require.ErrorIs(t, err, ErrUnauthorized)

	ch, err := svc.IssueChallenge(ctx)
	require.NoError(t, err)
	bad := signedProof(t, priv, ch.Nonce, time.Now())
	bad.Domain = "elsewhere"
	_, err = svc.Verify(ctx, bad)
	require.ErrorIs(t, err, ErrUnauthorized)

	// A failed signature does not burn the challenge.
	sess, err := svc.Verify(ctx, signedProof(t, priv, ch.Nonce, time.Now()))
	require.NoError(t, err)
	require.Empty(t, sess.Role)
}
