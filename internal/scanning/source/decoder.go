package source

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/vietddude/feescan/internal/core/domain"
)

// Fee-collection log layout: token and integrator are indexed topics,
// the two fee amounts are 32-byte words in the data field.
const feeWordHexLen = 64

// decodeFeeLog parses one raw log into a fee event. Timestamps are
// resolved separately by Decode.
func decodeFeeLog(sourceID string, raw *domain.RawLog) (*domain.FeeEvent, error) {
	if len(raw.Topics) < 3 {
		return nil, fmt.Errorf("expected 3 topics, got %d", len(raw.Topics))
	}

	token, err := topicToAddress(raw.Topics[1])
	if err != nil {
		return nil, fmt.Errorf("token topic: %w", err)
	}
	integrator, err := topicToAddress(raw.Topics[2])
	if err != nil {
		return nil, fmt.Errorf("integrator topic: %w", err)
	}

	integratorFee, platformFee, err := decodeFeeWords(raw.Data)
	if err != nil {
		return nil, err
	}

	return &domain.FeeEvent{
		SourceID:      sourceID,
		Token:         token,
		Integrator:    integrator,
		IntegratorFee: integratorFee,
		PlatformFee:   platformFee,
		BlockHeight:   raw.BlockHeight,
		TxHash:        raw.TxHash,
		LogIndex:      raw.LogIndex,
	}, nil
}

// topicToAddress extracts the 20-byte address from a 32-byte topic.
func topicToAddress(topic string) (string, error) {
	hex := strings.TrimPrefix(strings.ToLower(topic), "0x")
	if len(hex) != 64 {
		return "", fmt.Errorf("invalid topic length %d", len(hex))
	}
	return "0x" + hex[24:], nil
}

// decodeFeeWords parses the two uint256 fee amounts from the data
// field as arbitrary-precision decimal strings.
func decodeFeeWords(data string) (integratorFee, platformFee string, err error) {
	hex := strings.TrimPrefix(strings.ToLower(data), "0x")
	if len(hex) < 2*feeWordHexLen {
		return "", "", fmt.Errorf("data too short for two fee words: %d", len(hex))
	}

	integratorFee, err = hexWordToDecimal(hex[:feeWordHexLen])
	if err != nil {
		return "", "", fmt.Errorf("integrator fee: %w", err)
	}
	platformFee, err = hexWordToDecimal(hex[feeWordHexLen : 2*feeWordHexLen])
	if err != nil {
		return "", "", fmt.Errorf("platform fee: %w", err)
	}
	return integratorFee, platformFee, nil
}

func hexWordToDecimal(word string) (string, error) {
	n, ok := new(big.Int).SetString(word, 16)
	if !ok {
		return "", fmt.Errorf("invalid hex word %q", word)
	}
	return n.String(), nil
}

// parseHexUint parses a 0x-prefixed hex quantity.
func parseHexUint(s string) (uint64, error) {
	hex := strings.TrimPrefix(strings.ToLower(s), "0x")
	if hex == "" {
		return 0, fmt.Errorf("empty hex quantity %q", s)
	}
	n, ok := new(big.Int).SetString(hex, 16)
	if !ok {
		return 0, fmt.Errorf("invalid hex quantity %q", s)
	}
	if !n.IsUint64() {
		return 0, fmt.Errorf("hex quantity %q overflows uint64", s)
	}
	return n.Uint64(), nil
}
