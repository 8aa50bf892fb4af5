package symbols

import (
	"context"
	"log"
	"sort"

	"patterndraw/pkg/model"
)

// Exchange is the market every symbol here trades on
const Exchange = "BIST"

// Source lists symbols from a remote service
type Source interface {
	Symbols(ctx context.Context) ([]string, error)
}

// Loader handles loading stock symbols, falling back to the built-in list
type Loader struct {
	source   Source
	fallback []string
}

// NewLoader creates a new symbol loader. source may be nil.
func NewLoader(src Source) *Loader {
	return &Loader{source: src, fallback: BISTSymbols}
}

// Load returns the sorted symbol list. A failing or empty remote answer falls
// back to the built-in BIST list.
func (l *Loader) Load(ctx context.Context) []string {
	if l.source != nil {
		remote, err := l.source.Symbols(ctx)
		if err != nil {
			log.Printf("[SYMBOLS] remote list unavailable, using built-in: %v", err)
		} else if cleaned := clean(remote); len(cleaned) > 0 {
			return cleaned
		}
	}
	return append([]string(nil), l.fallback...)
}

// LoadStocks returns Load as stock records
func (l *Loader) LoadStocks(ctx context.Context) []model.Stock {
	return LoadSymbols(l.Load(ctx))
}

// LoadSymbols turns raw symbols into stock records, dropping invalid ones
func LoadSymbols(symbols []string) []model.Stock {
	stocks := make([]model.Stock, 0, len(symbols))
	for _, sym := range symbols {
		sym = Normalize(sym)
		if !isValidSymbol(sym) {
			continue
		}
		stocks = append(stocks, model.Stock{
			Symbol:   sym,
			Name:     sym,
			Exchange: Exchange,
		})
	}
	return stocks
}

// clean normalizes, validates, dedupes and sorts
func clean(symbols []string) []string {
	seen := make(map[string]bool, len(symbols))
	out := make([]string, 0, len(symbols))
	for _, s := range symbols {
		s = Normalize(s)
		if !isValidSymbol(s) || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// isValidSymbol checks if a symbol is a BIST code (2-6 letters, optional .IS)
func isValidSymbol(symbol string) bool {
	if len(symbol) > len(TickerSuffix) && symbol[len(symbol)-len(TickerSuffix):] == TickerSuffix {
		symbol = symbol[:len(symbol)-len(TickerSuffix)]
	}
	if len(symbol) < 2 || len(symbol) > 6 {
		return false
	}
	for _, c := range symbol {
		if c < 'A' || c > 'Z' {
			return false
		}
	}
	return true
}

// IsValid reports whether symbol looks like a BIST code
func IsValid(symbol string) bool {
	return isValidSymbol(Normalize(symbol))
}
