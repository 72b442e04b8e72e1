// Package pricing provides pure cost calculation for metered model usage.
// All functions are deterministic with no side effects and no I/O.
// Money is exact fixed-point decimal - never binary floating point.
package pricing

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// Rate holds per-1K-token prices in USD for one model (value type).
type Rate struct {
	Input  decimal.Decimal
	Output decimal.Decimal
}

// Table is an immutable pricing table mapping model name to Rate.
// Build one with NewTable; the zero value knows no models.
type Table struct {
	rates map[string]Rate
	known []string
}

// NewTable builds a pricing table from model rates.
// The input map is copied; later mutation of it does not affect the table.
func NewTable(rates map[string]Rate) Table {
	copied := make(map[string]Rate, len(rates))
	known := make([]string, 0, len(rates))
	for model, rate := range rates {
		copied[model] = rate
		known = append(known, model)
	}
	sort.Strings(known)
	return Table{rates: copied, known: known}
}

// DefaultTable returns the built-in per-1K-token price snapshot.
// Deployments override these via the pricing section of the config file.
func DefaultTable() Table {
	return NewTable(map[string]Rate{
		// OpenAI
		"gpt-4":         rate("0.03", "0.06"),
		"gpt-4-turbo":   rate("0.01", "0.03"),
		"gpt-3.5-turbo": rate("0.0005", "0.0015"),
		// Anthropic
		"claude-3-opus":   rate("0.015", "0.075"),
		"claude-3-sonnet": rate("0.003", "0.015"),
		"claude-3-haiku":  rate("0.00025", "0.00125"),
		// Groq (Llama-hosted)
		"llama-3-70b": rate("0.00059", "0.00079"),
		"llama-3-8b":  rate("0.00005", "0.00008"),
		// Google
		"gemini-1.5-pro":   rate("0.00125", "0.005"),
		"gemini-1.5-flash": rate("0.000075", "0.0003"),
	})
}

func rate(input, output string) Rate {
	return Rate{
		Input:  decimal.RequireFromString(input),
		Output: decimal.RequireFromString(output),
	}
}

// ParseRate builds a Rate from decimal strings, as found in config files.
func ParseRate(input, output string) (Rate, error) {
	in, err := decimal.NewFromString(input)
	if err != nil {
		return Rate{}, fmt.Errorf("input rate %q: %w", input, err)
	}
	out, err := decimal.NewFromString(output)
	if err != nil {
		return Rate{}, fmt.Errorf("output rate %q: %w", output, err)
	}
	if in.IsNegative() || out.IsNegative() {
		return Rate{}, fmt.Errorf("rates must be non-negative")
	}
	return Rate{Input: in, Output: out}, nil
}

// Known returns the sorted list of model names with known pricing.
func (t Table) Known() []string {
	out := make([]string, len(t.known))
	copy(out, t.known)
	return out
}

// Has reports whether the table has a rate for model.
func (t Table) Has(model string) bool {
	_, ok := t.rates[model]
	return ok
}

// UnknownModelError reports a model absent from the pricing table.
// It carries the known model names so callers can self-correct.
type UnknownModelError struct {
	Model string
	Known []string
}

func (e *UnknownModelError) Error() string {
	return fmt.Sprintf("unknown model %q, supported models: %s",
		e.Model, strings.Join(e.Known, ", "))
}

// ErrNegativeTokens indicates a malformed (negative) token count.
var ErrNegativeTokens = errors.New("token counts must be non-negative")

// Price computes the exact USD cost of one call:
//
//	cost = inputTokens/1000 * rate.Input + outputTokens/1000 * rate.Output
//
// The division by 1000 is a decimal shift, so the result is exact - no
// rounding ever happens here. Unknown models return *UnknownModelError;
// there is never a silent default cost.
// This is a PURE function.
func (t Table) Price(model string, inputTokens, outputTokens int64) (decimal.Decimal, error) {
	if inputTokens < 0 || outputTokens < 0 {
		return decimal.Zero, ErrNegativeTokens
	}

	r, ok := t.rates[model]
	if !ok {
		return decimal.Zero, &UnknownModelError{Model: model, Known: t.Known()}
	}

	inputCost := decimal.NewFromInt(inputTokens).Shift(-3).Mul(r.Input)
	outputCost := decimal.NewFromInt(outputTokens).Shift(-3).Mul(r.Output)
	return inputCost.Add(outputCost), nil
}
