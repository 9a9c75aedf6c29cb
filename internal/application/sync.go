package application

import (
	"fmt"
	"strings"

	"chainsync/internal/domain"
)

type SyncMode string

const (
	SyncBackfill SyncMode = "backfill"
	SyncLive     SyncMode = "live"
	SyncAuto     SyncMode = "auto"
)

func ParseSyncMode(raw string) (SyncMode, error) {
	switch SyncMode(strings.ToLower(strings.TrimSpace(raw))) {
	case SyncBackfill:
		return SyncBackfill, nil
	case SyncLive:
		return SyncLive, nil
	case SyncAuto, "":
		return SyncAuto, nil
	default:
		return "", fmt.Errorf("unknown sync mode %q", raw)
	}
}

// Checkpoint is the last durably synced height of a chain, if one exists.
type Checkpoint struct {
	Block uint64
	Valid bool
}

// ResolveStart picks the first height a run processes.
//
// Live on the UTXO chain deliberately behaves like Backfill; it has no
// tip-relative start.
func ResolveStart(mode SyncMode, chain domain.Chain, tip, configuredStart uint64, last Checkpoint) uint64 {
	switch mode {
	case SyncBackfill:
		return configuredStart
	case SyncLive:
		if chain.IsUTXO() {
			return configuredStart
		}
		lag := chain.SafetyLag()
		if tip < lag {
			return 0
		}
		return tip - lag
	default:
		if last.Valid {
			return last.Block + 1
		}
		return configuredStart
	}
}
