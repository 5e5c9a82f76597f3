package codegen

import (
	"sync/atomic"

	"github.com/charmbracelet/log"

	"github.com/jamesmistry/breadlog/internal/parser"
)

// startReferenceID is the first id allocated when no references exist yet.
const startReferenceID = 1

// Allocator hands out globally unique reference ids across every file
// processed by one invocation. Its lifetime is exactly one insertion pass.
type Allocator struct {
	next atomic.Uint32
}

// NewAllocator returns an allocator whose first id is start.
func NewAllocator(start uint32) *Allocator {
	a := &Allocator{}
	a.next.Store(start)
	return a
}

// Next returns the next id and advances the counter. No two callers ever
// observe the same id.
func (a *Allocator) Next() uint32 {
	return a.next.Add(1) - 1
}

// refIDStats is a next-id scan result. Per file, maxRef is the highest
// reference present (0 when none); after reduce it is the next free id.
type refIDStats struct {
	maxRef  uint32
	missing int
}

type nextReferenceIDProcessor struct{}

func (nextReferenceIDProcessor) Map(_ string, _ string, _ struct{}, entries []parser.LogRefEntry) (refIDStats, bool) {
	var stats refIDStats
	for i := range entries {
		if ref := entries[i].Reference; ref != nil {
			if *ref > stats.maxRef {
				stats.maxRef = *ref
			}
		} else {
			stats.missing++
		}
	}
	return stats, true
}

func (nextReferenceIDProcessor) Reduce(results []refIDStats) (refIDStats, bool) {
	var out refIDStats
	for _, r := range results {
		if r.maxRef > out.maxRef {
			out.maxRef = r.maxRef
		}
		out.missing += r.missing
	}
	if out.maxRef == 0 {
		out.maxRef = startReferenceID
	} else {
		out.maxRef++
	}
	return out, true
}

type countMissingProcessor struct{}

func (countMissingProcessor) Map(path string, _ string, _ struct{}, entries []parser.LogRefEntry) (int, bool) {
	missing := 0
	for i := range entries {
		e := &entries[i]
		if !e.Exists() {
			missing++
			log.Warn("Missing reference",
				"file", path, "line", e.Position.Line, "column", e.Position.Column)
		}
	}
	log.Info("Missing references in file", "file", path, "count", missing)
	return missing, true
}

func (countMissingProcessor) Reduce(results []int) (int, bool) {
	total := 0
	for _, r := range results {
		total += r
	}
	log.Info("Total missing references (all files)", "count", total)
	return total, true
}

// insertResult reports one file's insertion outcome; reduced, the whole
// pass's outcome.
type insertResult struct {
	failed   bool
	inserted int
}

type insertReferencesProcessor struct{}

func (insertReferencesProcessor) Map(path string, contents string, alloc *Allocator, entries []parser.LogRefEntry) (insertResult, bool) {
	pending := make([]*parser.LogRefEntry, 0, len(entries))
	for i := range entries {
		e := &entries[i]
		// A structured slot that exists but holds garbage is left for a
		// human; check mode reports it.
		if !e.Exists() && e.UsableReferencePosition() {
			pending = append(pending, e)
		}
	}
	if len(pending) == 0 {
		// Nothing to insert; the allocator is never touched.
		return insertResult{}, true
	}

	if alloc == nil {
		log.Error("Missing reference allocator during insert", "file", path)
		return insertResult{failed: true}, true
	}

	scratch, err := newScratchFile(path)
	if err != nil {
		log.Error("Failed to create scratch file", "file", path, "error", err)
		return insertResult{failed: true}, true
	}
	defer scratch.Discard()

	cursor := 0
	inserted := 0
	for _, e := range pending {
		at := e.Position.Offset

		// Entries arrive in source order; a position behind the write cursor
		// means the extractor misbehaved, and writing anyway would corrupt
		// the file.
		if at < cursor {
			log.Error("Reference insert position precedes write cursor",
				"file", path, "position", at, "cursor", cursor)
			return insertResult{failed: true}, true
		}

		if err := scratch.WriteString(contents[cursor:at]); err != nil {
			log.Error("Failed to write to scratch file", "file", path, "error", err)
			return insertResult{failed: true, inserted: inserted}, true
		}
		cursor = at

		if err := scratch.WriteString(e.InsertableReferenceString(alloc.Next())); err != nil {
			log.Error("Failed to write to scratch file", "file", path, "error", err)
			return insertResult{failed: true, inserted: inserted}, true
		}
		inserted++
	}

	if err := scratch.WriteString(contents[cursor:]); err != nil {
		log.Error("Failed to write to scratch file", "file", path, "error", err)
		return insertResult{failed: true, inserted: inserted}, true
	}

	if err := scratch.Commit(path); err != nil {
		log.Error("Failed to replace file with scratch copy", "file", path, "error", err)
		return insertResult{failed: true, inserted: inserted}, true
	}

	return insertResult{inserted: inserted}, true
}

func (insertReferencesProcessor) Reduce(results []insertResult) (insertResult, bool) {
	var out insertResult
	for _, r := range results {
		out.failed = out.failed || r.failed
		out.inserted += r.inserted
	}
	return out, true
}
