package storage

import (
	"github.com/bits-and-blooms/bloom/v3"
	"go.uber.org/zap"

	"match-crawler/internal/metrics"
)

const (
	// Sized for a full default crawl (30000 matches) with headroom.
	ledgerEstimatedMatches = 50000
	ledgerFalsePositive    = 0.001
)

// Ledger is the set of match ids already present in the output destination.
// A bloom filter answers the common "never seen" case; the exact set settles
// filter hits so a false positive never drops a new match.
type Ledger struct {
	filter *bloom.BloomFilter
	seen   map[string]struct{}
}

// NewLedger returns an empty ledger seeded with ids.
func NewLedger(ids ...string) *Ledger {
	estimate := uint(ledgerEstimatedMatches)
	if n := uint(len(ids)) * 2; n > estimate {
		estimate = n
	}
	l := &Ledger{
		filter: bloom.NewWithEstimates(estimate, ledgerFalsePositive),
		seen:   make(map[string]struct{}, len(ids)),
	}
	for _, id := range ids {
		l.Add(id)
	}
	return l
}

// Contains reports whether matchID has already been collected.
func (l *Ledger) Contains(matchID string) bool {
	if !l.filter.TestString(matchID) {
		return false
	}
	_, ok := l.seen[matchID]
	return ok
}

// Add records matchID. It reports false if the id was already present.
func (l *Ledger) Add(matchID string) bool {
	if l.Contains(matchID) {
		return false
	}
	l.filter.AddString(matchID)
	l.seen[matchID] = struct{}{}
	metrics.SetLedgerSize(len(l.seen))
	return true
}

// Len returns the number of distinct match ids recorded.
func (l *Ledger) Len() int {
	return len(l.seen)
}

// ResumeState is what a new crawl starts from: the ledger rebuilt from the
// output destination plus the number of data rows already there.
type ResumeState struct {
	Ledger *Ledger
	Rows   int
}

// LoadLedger rebuilds the ledger from the CSV destination at path. An absent
// file is a fresh run. An unreadable or malformed file is logged and also
// treated as a fresh run rather than aborting.
func LoadLedger(path string, logger *zap.Logger) ResumeState {
	if logger == nil {
		logger = zap.NewNop()
	}

	ids, rows, err := ReadMatchIDs(path)
	if err != nil {
		logger.Warn("Could not read existing output, starting with an empty ledger",
			zap.String("path", path),
			zap.Error(err),
		)
		ledger := NewLedger()
		metrics.SetLedgerSize(0)
		return ResumeState{Ledger: ledger}
	}

	ledger := NewLedger(ids...)
	metrics.SetLedgerSize(ledger.Len())
	if ledger.Len() > 0 {
		logger.Info("Resuming from existing output",
			zap.String("path", path),
			zap.Int("matches", ledger.Len()),
			zap.Int("rows", rows),
		)
	}
	return ResumeState{Ledger: ledger, Rows: rows}
}
