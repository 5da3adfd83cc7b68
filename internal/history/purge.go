package history

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ParseMaxAge parses the configured retention in days. Anything that is
// not a non-negative integer yields 0, which disables purging.
func ParseMaxAge(s string) int {
	days, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || days < 0 {
		return 0
	}
	return days
}

// PurgeResult summarizes one purge run.
type PurgeResult struct {
	Objects  int `json:"objects"` // object histories examined
	Deleted  int `json:"deleted"`
	Archived int `json:"archived"`
	Failed   int `json:"failed"`
}

// Purger deletes history records older than a retention window. The
// initial Created record and the newest record of each object are always
// kept.
type Purger struct {
	store    Store
	clock    Clock
	archiver Archiver
	logger   Logger
}

// NewPurger creates a Purger. archiver may be nil.
func NewPurger(store Store, clock Clock, archiver Archiver, logger Logger) *Purger {
	return &Purger{store: store, clock: clock, archiver: archiver, logger: logger}
}

// Run purges both roots. maxAgeDays <= 0 is a no-op. Per-record failures
// are logged and counted; only enumeration failures abort the run.
// Running it twice with the same clock deletes nothing the second time.
func (p *Purger) Run(maxAgeDays int) (*PurgeResult, error) {
	result := &PurgeResult{}
	if maxAgeDays <= 0 {
		return result, nil
	}

	cutoff := p.clock.Now().Add(-time.Duration(maxAgeDays) * 24 * time.Hour)
	p.logger.Info("purging history", "max_age_days", maxAgeDays, "cutoff", FormatTimestamp(cutoff))

	for _, root := range []RootKind{RootSystem, RootJobs} {
		err := p.store.Walk(root, false, func(name string) error {
			return p.purgeObject(root, name, cutoff, result)
		})
		if err != nil {
			return result, fmt.Errorf("walking %s history: %w", root, err)
		}
	}

	p.logger.Info("purge finished",
		"objects", result.Objects,
		"deleted", result.Deleted,
		"archived", result.Archived,
		"failed", result.Failed)
	return result, nil
}

func (p *Purger) purgeObject(root RootKind, name string, cutoff time.Time, result *PurgeResult) error {
	records, err := p.store.ListRecords(root, name)
	if err != nil {
		p.logger.Warn("skipping unreadable history", "root", root.String(), "name", name, "error", err)
		result.Failed++
		return nil
	}
	if len(records) == 0 {
		return nil
	}
	result.Objects++

	// The newest record is never purged.
	for _, rec := range records[:len(records)-1] {
		if rec.Operation == OpCreated {
			continue
		}
		ts, err := ParseTimestamp(rec.Timestamp)
		if err != nil || !ts.Before(cutoff) {
			continue
		}

		if p.archiver != nil {
			if err := p.archive(rec); err != nil {
				p.logger.Warn("archiving record failed, keeping it", "name", name, "timestamp", rec.Timestamp, "error", err)
				result.Failed++
				continue
			}
			result.Archived++
		}

		if err := p.store.DeleteRecord(rec); err != nil {
			p.logger.Warn("deleting record failed", "name", name, "timestamp", rec.Timestamp, "error", err)
			result.Failed++
			continue
		}
		p.logger.Debug("purged record", "root", root.String(), "name", name, "timestamp", rec.Timestamp)
		result.Deleted++
	}
	return nil
}

func (p *Purger) archive(rec *Record) error {
	content, err := p.store.ReadContent(rec)
	if err != nil {
		return fmt.Errorf("reading snapshot: %w", err)
	}
	return p.archiver.Archive(rec, content)
}
