package source

import (
	"context"
	"fmt"
	"time"

	"github.com/vietddude/feescan/internal/core/domain"
	"github.com/vietddude/feescan/internal/scanning/retry"
)

// Source abstracts the upstream event feed for one logical source.
type Source interface {
	// SourceID returns the logical source identifier.
	SourceID() string

	// CurrentHeight returns the upstream head height.
	CurrentHeight(ctx context.Context) (uint64, error)

	// FetchRange returns the raw fee-collection logs in [from, to].
	FetchRange(ctx context.Context, from, to uint64) ([]*domain.RawLog, error)

	// Decode enriches raw logs into fee events, resolving block
	// timestamps with a cache scoped to this single call.
	Decode(ctx context.Context, raws []*domain.RawLog) ([]*domain.FeeEvent, error)
}

// RPCClient is the transport the feed source talks through.
type RPCClient interface {
	Call(ctx context.Context, method string, params []any) (any, error)
	Reconnect() error
}

// FeedSource implements Source against a JSON-RPC upstream.
type FeedSource struct {
	sourceID string
	contract string
	topic    string
	client   RPCClient
	strategy retry.Strategy
}

// Config holds feed source configuration.
type Config struct {
	SourceID        string
	ContractAddress string
	EventTopic      string
	Retry           retry.Strategy
}

// NewFeedSource creates a feed source for one upstream.
func NewFeedSource(cfg Config, client RPCClient) *FeedSource {
	return &FeedSource{
		sourceID: cfg.SourceID,
		contract: cfg.ContractAddress,
		topic:    cfg.EventTopic,
		client:   client,
		strategy: cfg.Retry,
	}
}

// SourceID returns the logical source identifier.
func (s *FeedSource) SourceID() string {
	return s.sourceID
}

// call runs one upstream call under the bounded retry loop.
func (s *FeedSource) call(ctx context.Context, method string, params []any) (any, error) {
	var result any
	err := retry.Do(ctx, s.strategy, s.client.Reconnect, func() error {
		var callErr error
		result, callErr = s.client.Call(ctx, method, params)
		return callErr
	})
	if err != nil {
		return nil, fmt.Errorf("%s failed: %w", method, err)
	}
	return result, nil
}

// CurrentHeight returns the upstream head height.
func (s *FeedSource) CurrentHeight(ctx context.Context) (uint64, error) {
	result, err := s.call(ctx, "eth_blockNumber", nil)
	if err != nil {
		return 0, err
	}

	heightHex, ok := result.(string)
	if !ok {
		return 0, fmt.Errorf("invalid block number response: %T", result)
	}
	return parseHexUint(heightHex)
}

// FetchRange returns the raw fee-collection logs in [from, to].
func (s *FeedSource) FetchRange(ctx context.Context, from, to uint64) ([]*domain.RawLog, error) {
	filter := map[string]any{
		"fromBlock": fmt.Sprintf("0x%x", from),
		"toBlock":   fmt.Sprintf("0x%x", to),
		"address":   s.contract,
	}
	if s.topic != "" {
		filter["topics"] = []any{s.topic}
	}

	result, err := s.call(ctx, "eth_getLogs", []any{filter})
	if err != nil {
		return nil, err
	}

	rawList, ok := result.([]any)
	if !ok {
		return nil, fmt.Errorf("invalid logs response: %T", result)
	}

	logs := make([]*domain.RawLog, 0, len(rawList))
	for _, item := range rawList {
		entry, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("invalid log entry: %T", item)
		}
		raw, err := parseRawLog(entry)
		if err != nil {
			return nil, err
		}
		logs = append(logs, raw)
	}
	return logs, nil
}

// Decode enriches raw logs into fee events. Multiple events sharing a
// block incur exactly one timestamp lookup; the cache lives and dies
// with this invocation, it is never shared across calls.
func (s *FeedSource) Decode(ctx context.Context, raws []*domain.RawLog) ([]*domain.FeeEvent, error) {
	timestamps := make(map[uint64]time.Time)

	events := make([]*domain.FeeEvent, 0, len(raws))
	for _, raw := range raws {
		event, err := decodeFeeLog(s.sourceID, raw)
		if err != nil {
			return nil, fmt.Errorf("decode log %s:%d: %w", raw.TxHash, raw.LogIndex, err)
		}

		ts, ok := timestamps[raw.BlockHeight]
		if !ok {
			ts, err = s.resolveTimestamp(ctx, raw.BlockHeight)
			if err != nil {
				return nil, err
			}
			timestamps[raw.BlockHeight] = ts
		}
		event.BlockTimestamp = ts

		events = append(events, event)
	}
	return events, nil
}

func (s *FeedSource) resolveTimestamp(ctx context.Context, height uint64) (time.Time, error) {
	result, err := s.call(ctx, "eth_getBlockByNumber", []any{fmt.Sprintf("0x%x", height), false})
	if err != nil {
		return time.Time{}, err
	}

	block, ok := result.(map[string]any)
	if !ok {
		return time.Time{}, fmt.Errorf("invalid block response for height %d: %T", height, result)
	}

	tsHex, ok := block["timestamp"].(string)
	if !ok {
		return time.Time{}, fmt.Errorf("block %d missing timestamp", height)
	}

	ts, err := parseHexUint(tsHex)
	if err != nil {
		return time.Time{}, fmt.Errorf("block %d timestamp: %w", height, err)
	}
	return time.Unix(int64(ts), 0).UTC(), nil
}

func parseRawLog(entry map[string]any) (*domain.RawLog, error) {
	height, err := parseHexUint(getString(entry["blockNumber"]))
	if err != nil {
		return nil, fmt.Errorf("log blockNumber: %w", err)
	}
	logIndex, err := parseHexUint(getString(entry["logIndex"]))
	if err != nil {
		return nil, fmt.Errorf("log logIndex: %w", err)
	}

	var topics []string
	if rawTopics, ok := entry["topics"].([]any); ok {
		for _, t := range rawTopics {
			topics = append(topics, getString(t))
		}
	}

	return &domain.RawLog{
		Address:     getString(entry["address"]),
		Topics:      topics,
		Data:        getString(entry["data"]),
		BlockHeight: height,
		TxHash:      getString(entry["transactionHash"]),
		LogIndex:    logIndex,
	}, nil
}

func getString(v any) string {
	s, _ := v.(string)
	return s
}
