package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/rentchain/escrow/internal/auth"
	"github.com/rentchain/escrow/internal/models"
	"github.com/rentchain/escrow/internal/rbac"
	"go.uber.org/zap"
)

type NonceStore interface {
	Issue(ctx context.Context, nonce string, ttl time.Duration) error
	Consume(ctx context.Context, nonce string) (bool, error)
}

type SessionConfig struct {
	JWTSecret      string
	JWTExpiration  time.Duration
	AllowedDomains []string
	ChallengeTTL   time.Duration
	Operator       models.Address
	Now            func() time.Time
}

// SessionService turns a signed wallet challenge into a session token. It is
// the only place caller identities are established.
type SessionService struct {
	nonces NonceStore
	cfg    SessionConfig
	log    *zap.Logger
}

func NewSessionService(nonces NonceStore, cfg SessionConfig, log *zap.Logger) *SessionService {
	if cfg.ChallengeTTL <= 0 {
		cfg.ChallengeTTL = auth.MaxProofAge
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &SessionService{nonces: nonces, cfg: cfg, log: log}
}

type Challenge struct {
	Nonce     string    `json:"nonce"`
	ExpiresAt time.Time `json:"expires_at"`
}

type Session struct {
	Token   string         `json:"token"`
	Address models.Address `json:"address"`
	Role    string         `json:"role,omitempty"`
}

// IssueChallenge создаёт nonce, который кошелёк подписывает при входе.
func (s *SessionService) IssueChallenge(ctx context.Context) (Challenge, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return Challenge{}, err
	}
	nonce := hex.EncodeToString(buf)
	if err := s.nonces.Issue(ctx, nonce, s.cfg.ChallengeTTL); err != nil {
		return Challenge{}, fmt.Errorf("failed to store challenge: %w", err)
	}
	return Challenge{Nonce: nonce, ExpiresAt: s.cfg.Now().Add(s.cfg.ChallengeTTL).UTC()}, nil
}

// Verify проверяет подпись и выдаёт JWT. Nonce одноразовый.
func (s *SessionService) Verify(ctx context.Context, proof auth.WalletProof) (Session, error) {
	// 1. Проверяем подпись до потребления nonce, чтобы чужой запрос не сжёг его
	addr, err := auth.VerifyWalletProof(proof, s.cfg.AllowedDomains, s.cfg.Now())
	if err != nil {
		return Session{}, reject(ErrUnauthorized, "wallet proof verification failed: %v", err)
	}

	// 2. Consume nonce (защита от replay)
	ok, err := s.nonces.Consume(ctx, proof.Nonce)
	if err != nil {
		return Session{}, fmt.Errorf("failed to consume challenge: %w", err)
	}
	if !ok {
		return Session{}, reject(ErrUnauthorized, "invalid or expired challenge nonce")
	}

	role := ""
	if addr == s.cfg.Operator {
		role = rbac.RoleOperator
	}
	token, err := auth.GenerateJWT(s.cfg.JWTSecret, addr, role, s.cfg.JWTExpiration)
	if err != nil {
		return Session{}, err
	}

	s.log.Info("wallet session issued", zap.String("address", addr.String()), zap.String("role", role))
	return Session{Token: token, Address: addr, Role: role}, nil
}
