package ui

// Unicode symbols for status indicators.
const (
	SymbolSuccess  = "✓" // Operation succeeded
	SymbolFail     = "✗" // Operation failed
	SymbolPending  = "○" // Not done / off
	SymbolProgress = "◐" // In progress
	SymbolComplete = "●" // Done / on
	SymbolSkipped  = "⊘" // Cancelled or skipped
)
