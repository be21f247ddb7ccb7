// Package models defines the value types shared across the ledger.
package models

import "math"

// TokenUsage is a single usage observation as reported by the protocol
// layer: token counts for one request/response exchange.
type TokenUsage struct {
	InputTokens           uint64 `json:"input_tokens"`
	CachedInputTokens     uint64 `json:"cached_input_tokens"`
	OutputTokens          uint64 `json:"output_tokens"`
	ReasoningOutputTokens uint64 `json:"reasoning_output_tokens"`
	TotalTokens           uint64 `json:"total_tokens"`
}

// IsZero reports whether the observation carries no tokens.
func (u TokenUsage) IsZero() bool {
	return u.TotalTokens == 0
}

// TokenTotals accumulates token counts over time. All additions saturate
// at the maximum representable value instead of wrapping.
type TokenTotals struct {
	InputTokens           uint64 `json:"input_tokens"`
	CachedInputTokens     uint64 `json:"cached_input_tokens"`
	OutputTokens          uint64 `json:"output_tokens"`
	ReasoningOutputTokens uint64 `json:"reasoning_output_tokens"`
	TotalTokens           uint64 `json:"total_tokens"`
}

func saturatingAdd(a, b uint64) uint64 {
	if a > math.MaxUint64-b {
		return math.MaxUint64
	}
	return a + b
}

// AddUsage folds one usage observation into the totals.
func (t *TokenTotals) AddUsage(u TokenUsage) {
	t.InputTokens = saturatingAdd(t.InputTokens, u.InputTokens)
	t.CachedInputTokens = saturatingAdd(t.CachedInputTokens, u.CachedInputTokens)
	t.OutputTokens = saturatingAdd(t.OutputTokens, u.OutputTokens)
	t.ReasoningOutputTokens = saturatingAdd(t.ReasoningOutputTokens, u.ReasoningOutputTokens)
	t.TotalTokens = saturatingAdd(t.TotalTokens, u.TotalTokens)
}

// AddTotals folds another aggregate into the totals.
func (t *TokenTotals) AddTotals(other TokenTotals) {
	t.InputTokens = saturatingAdd(t.InputTokens, other.InputTokens)
	t.CachedInputTokens = saturatingAdd(t.CachedInputTokens, other.CachedInputTokens)
	t.OutputTokens = saturatingAdd(t.OutputTokens, other.OutputTokens)
	t.ReasoningOutputTokens = saturatingAdd(t.ReasoningOutputTokens, other.ReasoningOutputTokens)
	t.TotalTokens = saturatingAdd(t.TotalTokens, other.TotalTokens)
}

// TotalsFromUsage converts one observation into a standalone aggregate.
func TotalsFromUsage(u TokenUsage) TokenTotals {
	var t TokenTotals
	t.AddUsage(u)
	return t
}
