package models

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// Address is a 20-byte account identity rendered as 0x-prefixed lowercase hex.
type Address string

const ZeroAddress Address = "0x0000000000000000000000000000000000000000"

const addressHexLen = 40

// ParseAddress validates and normalizes an address string.
func ParseAddress(s string) (Address, error) {
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, "0x") && !strings.HasPrefix(trimmed, "0X") {
		return "", fmt.Errorf("address must start with 0x: %q", s)
	}
	body := strings.ToLower(trimmed[2:])
	if len(body) != addressHexLen {
		return "", fmt.Errorf("address must have %d hex chars, got %d", addressHexLen, len(body))
	}
	if _, err := hex.DecodeString(body); err != nil {
		return "", fmt.Errorf("invalid address hex: %w", err)
	}
	return Address("0x" + body), nil
}

// AddressFromBytes renders the first 20 bytes of b as an address.
func AddressFromBytes(b []byte) Address {
	var buf [20]byte
	copy(buf[:], b)
	return Address("0x" + hex.EncodeToString(buf[:]))
}

func (a Address) IsZero() bool {
	return a == "" || a == ZeroAddress
}

func (a Address) String() string { return string(a) }
