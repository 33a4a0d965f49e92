package domain

import (
	"math"

	"github.com/shopspring/decimal"
)

// Band is an ordered classification of revenue against the annual ceiling.
// Higher values are more severe.
type Band int

const (
	BandNormal Band = iota
	BandAttention
	BandWarning
	BandCritical
	BandExceeded
	BandExceededCritical
)

// Lower edges of each band as a ratio to the ceiling. Edges belong to the
// higher band.
const (
	AttentionEdge        = 0.65
	WarningEdge          = 0.80
	CriticalEdge         = 0.95
	ExceededEdge         = 1.00
	ExceededCriticalEdge = 1.20
)

// DisqualificationFactor is the share of the ceiling above which the
// entity is disqualified retroactively to January 1.
var DisqualificationFactor = decimal.RequireFromString("1.2")

var bandNames = [...]string{
	BandNormal:           "NORMAL",
	BandAttention:        "ATTENTION",
	BandWarning:          "WARNING",
	BandCritical:         "CRITICAL",
	BandExceeded:         "EXCEEDED",
	BandExceededCritical: "EXCEEDED_CRITICAL",
}

func (b Band) String() string {
	if b < BandNormal || b > BandExceededCritical {
		return "UNKNOWN"
	}
	return bandNames[b]
}

// ParseBand is the inverse of String; unknown names map to NORMAL.
func ParseBand(name string) Band {
	for i, n := range bandNames {
		if n == name {
			return Band(i)
		}
	}
	return BandNormal
}

// Classify maps a ratio to its band using the default ATTENTION edge.
func Classify(ratio float64) Band {
	return ClassifyWithAttention(ratio, AttentionEdge)
}

// ClassifyWithAttention maps a ratio to its band with a custom ATTENTION
// lower edge, clamped to (0, WarningEdge]. Negative and NaN ratios are 0.
func ClassifyWithAttention(ratio, attentionEdge float64) Band {
	if math.IsNaN(ratio) || ratio < 0 {
		ratio = 0
	}
	if math.IsNaN(attentionEdge) || attentionEdge <= 0 || attentionEdge > WarningEdge {
		attentionEdge = AttentionEdge
	}

	switch {
	case ratio >= ExceededCriticalEdge:
		return BandExceededCritical
	case ratio >= ExceededEdge:
		return BandExceeded
	case ratio >= CriticalEdge:
		return BandCritical
	case ratio >= WarningEdge:
		return BandWarning
	case ratio >= attentionEdge:
		return BandAttention
	default:
		return BandNormal
	}
}
