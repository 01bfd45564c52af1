package domain

import "time"

// FeeEvent is one decoded fee-collection record.
// Identity key is (SourceID, TxHash, LogIndex); rows are immutable once
// written and only ever inserted-if-absent.
type FeeEvent struct {
	SourceID       string
	Token          string
	Integrator     string
	IntegratorFee  string // arbitrary-precision decimal string, never a float
	PlatformFee    string // arbitrary-precision decimal string, never a float
	BlockHeight    uint64
	TxHash         string
	LogIndex       uint64
	BlockTimestamp time.Time
}

// RawLog is an undecoded upstream log entry as returned by the feed.
type RawLog struct {
	Address     string
	Topics      []string
	Data        string
	BlockHeight uint64
	TxHash      string
	LogIndex    uint64
}
