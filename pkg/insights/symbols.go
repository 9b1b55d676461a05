// Package insights derives analytics from a user's dream history. Every
// function is pure: it takes the full dream list (newest first) and returns
// a fresh view, so counts always match the current set of dreams.
package insights

import (
	"sort"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"dreamdecode/pkg/domain"
)

const (
	// RecurringThreshold is the count at which a symbol is fed back into prompts.
	RecurringThreshold = 2
	// AlertThreshold is the count at which a symbol raises a pattern alert.
	AlertThreshold = 3
)

var lower = cases.Lower(language.Und)

// NormalizeSymbolName folds case and whitespace so "Rabbit" and " rabbit "
// share a key.
func NormalizeSymbolName(name string) string {
	return strings.Join(strings.Fields(lower.String(name)), " ")
}

// SymbolEntry aggregates one normalized symbol across the dream list.
type SymbolEntry struct {
	Symbol   domain.DreamSymbol `json:"symbol"`
	Count    int                `json:"count"`
	DreamIDs []string           `json:"dream_ids"`
}

// SymbolFrequency counts every symbol occurrence by normalized name. Entries
// come back in first-encounter order. The representative symbol is the first
// one seen; its OccurrenceCount and FirstSeen are recomputed from the set.
func SymbolFrequency(dreams []domain.Dream) []SymbolEntry {
	index := make(map[string]int)
	var out []SymbolEntry
	for _, d := range dreams {
		for _, sym := range d.Symbols {
			key := NormalizeSymbolName(sym.Name)
			if key == "" {
				continue
			}
			i, ok := index[key]
			if !ok {
				rep := sym
				rep.Name = key
				rep.FirstSeen = d.CreatedAt
				index[key] = len(out)
				out = append(out, SymbolEntry{Symbol: rep, Count: 1, DreamIDs: []string{d.ID}})
				continue
			}
			e := &out[i]
			e.Count++
			if !containsString(e.DreamIDs, d.ID) {
				e.DreamIDs = append(e.DreamIDs, d.ID)
			}
			if e.Symbol.Emoji == "" && sym.Emoji != "" {
				e.Symbol.Emoji = sym.Emoji
			}
			if !d.CreatedAt.IsZero() && (e.Symbol.FirstSeen.IsZero() || d.CreatedAt.Before(e.Symbol.FirstSeen)) {
				e.Symbol.FirstSeen = d.CreatedAt
			}
		}
	}
	for i := range out {
		out[i].Symbol.OccurrenceCount = out[i].Count
	}
	return out
}

// RecurringSymbolNames lists normalized names seen at least RecurringThreshold
// times, in first-encounter order. The list biases future AI prompts toward
// reusing the same vocabulary.
func RecurringSymbolNames(dreams []domain.Dream) []string {
	names := []string{}
	for _, e := range SymbolFrequency(dreams) {
		if e.Count >= RecurringThreshold {
			names = append(names, e.Symbol.Name)
		}
	}
	return names
}

// TopSymbols returns up to n symbols ordered by count, ties in encounter order.
func TopSymbols(entries []SymbolEntry, n int) []domain.DreamSymbol {
	sorted := make([]SymbolEntry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Count > sorted[j].Count })
	if n >= 0 && len(sorted) > n {
		sorted = sorted[:n]
	}
	out := make([]domain.DreamSymbol, 0, len(sorted))
	for _, e := range sorted {
		out = append(out, e.Symbol)
	}
	return out
}

// DreamRef is the minimal dream reference used in connection lists.
type DreamRef struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// Connection is a symbol that links two or more dreams.
type Connection struct {
	Symbol string     `json:"symbol"`
	Emoji  string     `json:"emoji"`
	Dreams []DreamRef `json:"dreams"`
}

// Connections lists up to n symbols shared by at least two distinct dreams,
// widest first.
func Connections(entries []SymbolEntry, dreams []domain.Dream, n int) []Connection {
	titles := make(map[string]string, len(dreams))
	for _, d := range dreams {
		titles[d.ID] = d.Title
	}
	var out []Connection
	for _, e := range entries {
		if len(e.DreamIDs) < 2 {
			continue
		}
		refs := make([]DreamRef, 0, len(e.DreamIDs))
		for _, id := range e.DreamIDs {
			title := titles[id]
			if title == "" {
				title = "Untitled"
			}
			refs = append(refs, DreamRef{ID: id, Title: title})
		}
		out = append(out, Connection{Symbol: e.Symbol.Name, Emoji: e.Symbol.Emoji, Dreams: refs})
	}
	sort.SliceStable(out, func(i, j int) bool { return len(out[i].Dreams) > len(out[j].Dreams) })
	if n >= 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// RecentDreams keeps dreams created strictly after now-window.
func RecentDreams(dreams []domain.Dream, now time.Time, window time.Duration) []domain.Dream {
	cutoff := now.Add(-window)
	out := []domain.Dream{}
	for _, d := range dreams {
		if d.CreatedAt.After(cutoff) {
			out = append(out, d)
		}
	}
	return out
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
