package domain

import "time"

// ScanProgress represents the scanning position of one source.
// Exactly one row exists per source; it is created lazily on the first
// cycle and never deleted.
type ScanProgress struct {
	SourceID          string
	LastScannedHeight uint64
	KnownHeadHeight   uint64
	Status            ScanStatus
	LastError         string
	LastScanTime      time.Time
}

type ScanStatus string

const (
	ScanStatusIdle     ScanStatus = "idle"
	ScanStatusScanning ScanStatus = "scanning"
	ScanStatusError    ScanStatus = "error"
)
