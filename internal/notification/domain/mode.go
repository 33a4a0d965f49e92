package domain

import "strings"

// DedupMode selects which guards apply to ceiling alerts.
type DedupMode string

const (
	DedupCrossingAndCooldown DedupMode = "crossing_and_cooldown"
	DedupCrossing            DedupMode = "crossing"
	DedupCooldown            DedupMode = "cooldown"
)

// Suppression reasons, also used as metric labels.
const (
	SuppressedNoCrossing = "no_crossing"
	SuppressedCooldown   = "cooldown"
)

// ParseDedupMode falls back to DedupCrossingAndCooldown on unknown input.
func ParseDedupMode(raw string) DedupMode {
	switch DedupMode(strings.ToLower(strings.TrimSpace(raw))) {
	case DedupCrossing:
		return DedupCrossing
	case DedupCooldown:
		return DedupCooldown
	default:
		return DedupCrossingAndCooldown
	}
}

func (m DedupMode) UsesCrossing() bool { return m != DedupCooldown }

func (m DedupMode) UsesCooldown() bool { return m != DedupCrossing }
