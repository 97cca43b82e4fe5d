package auth

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/rentchain/escrow/internal/models"
)

const (
	// ProofPrefix: фиксированный префикс подписываемого сообщения.
	ProofPrefix = "rentchain-auth-v1/"

	// MaxProofAge: максимальный возраст proof (защита от replay).
	MaxProofAge = 5 * time.Minute
)

// WalletProof: подпись кошелька над выданным сервером nonce.
type WalletProof struct {
	PublicKey string `json:"public_key"` // hex
	Timestamp int64  `json:"timestamp"`
	Domain    string `json:"domain"`
	Nonce     string `json:"nonce"`
	Signature string `json:"signature"` // hex
}

// ProofMessage собирает сообщение для подписи:
// "rentchain-auth-v1/" ++ domain_len(4 bytes LE) ++ domain ++ timestamp(8 bytes LE) ++ nonce
func ProofMessage(domain string, timestamp int64, nonce string) []byte {
	message := []byte(ProofPrefix)

	domainLenBytes := make([]byte, 4)
	binary.LittleEndian.PutUint32(domainLenBytes, uint32(len(domain)))
	message = append(message, domainLenBytes...)
	message = append(message, []byte(domain)...)

	tsBytes := make([]byte, 8)
	binary.LittleEndian.PutUint64(tsBytes, uint64(timestamp))
	message = append(message, tsBytes...)

	return append(message, []byte(nonce)...)
}

// AddressFromPublicKey: адрес = первые 20 байт sha256(public_key).
func AddressFromPublicKey(pub ed25519.PublicKey) models.Address {
	sum := sha256.Sum256(pub)
	return models.AddressFromBytes(sum[:20])
}

// VerifyWalletProof проверяет подпись и возвращает адрес кошелька.
// Nonce здесь не потребляется: это делает вызывающий код.
func VerifyWalletProof(p WalletProof, allowedDomains []string, now time.Time) (models.Address, error) {
	// 1. Проверяем timestamp
	proofTime := time.Unix(p.Timestamp, 0)
	if now.Sub(proofTime) > MaxProofAge {
		return "", fmt.Errorf("proof expired: %s old", now.Sub(proofTime).Round(time.Second))
	}
	if proofTime.After(now.Add(1 * time.Minute)) {
		return "", fmt.Errorf("proof timestamp is in the future")
	}

	// 2. Проверяем domain
	if !isDomainAllowed(p.Domain, allowedDomains) {
		return "", fmt.Errorf("domain %q not in allowed list", p.Domain)
	}
	if p.Nonce == "" {
		return "", fmt.Errorf("nonce is required")
	}

	// 3. Декодируем public key
	pubKey, err := hex.DecodeString(p.PublicKey)
	if err != nil {
		return "", fmt.Errorf("invalid public key hex: %w", err)
	}
	if len(pubKey) != ed25519.PublicKeySize {
		return "", fmt.Errorf("invalid public key size: %d", len(pubKey))
	}

	// 4. Декодируем signature
	sig, err := hex.DecodeString(p.Signature)
	if err != nil {
		return "", fmt.Errorf("invalid signature hex: %w", err)
	}
	if len(sig) != ed25519.SignatureSize {
		return "", fmt.Errorf("invalid signature size: %d", len(sig))
	}

	// 5. Верифицируем: ed25519.Verify(pubKey, sha256(message), sig)
	msgHash := sha256.Sum256(ProofMessage(p.Domain, p.Timestamp, p.Nonce))
	if !ed25519.Verify(pubKey, msgHash[:], sig) {
		return "", fmt.Errorf("invalid signature")
	}

	return AddressFromPublicKey(pubKey), nil
}

func isDomainAllowed(domain string, allowed []string) bool {
	if len(allowed) == 0 {
		return true // если список пуст, разрешаем всё (dev mode)
	}
	for _, d := range allowed {
		if d == domain {
			return true
		}
	}
	return false
}
