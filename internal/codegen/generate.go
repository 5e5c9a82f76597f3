package codegen

import (
	"errors"
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/jamesmistry/breadlog/internal/cache"
	"github.com/jamesmistry/breadlog/internal/config"
)

var errStopped = errors.New("stop requested")

// CheckReferences scans the source tree and fails when any log call site
// lacks a usable reference. No files are modified.
func CheckReferences(ctx *config.Context) error {
	files, err := FindCode(ctx)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return errors.New("no files found")
	}
	log.Info("Found files", "count", len(files))

	missing, ok := processReferences(ctx, countMissingProcessor{}, struct{}{}, files)
	if !ok {
		return errStopped
	}
	if missing > 0 {
		return fmt.Errorf("%d missing reference(s) found", missing)
	}
	return nil
}

// GenerateCode inserts a freshly allocated reference at every call site
// missing one, rewriting files in place, then persists the next free id to
// the cache when caching is enabled.
func GenerateCode(ctx *config.Context) error {
	files, err := FindCode(ctx)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return errors.New("no files found")
	}
	log.Info("Found files", "count", len(files))

	var nextID uint32
	if ctx.HasCachedReferenceID {
		log.Info("Using cached next reference ID", "id", ctx.CachedNextReferenceID)
		nextID = ctx.CachedNextReferenceID
	} else {
		log.Info("Performing first pass to determine next reference ID")
		stats, ok := processReferences(ctx, nextReferenceIDProcessor{}, struct{}{}, files)
		if !ok {
			return fmt.Errorf("failed to determine next reference ID: %w", errStopped)
		}
		if stats.missing == 0 {
			log.Info("No missing references - nothing to do")
			return nil
		}
		nextID = stats.maxRef
	}

	log.Info("Next reference ID", "id", nextID)

	result, ok := processReferences(ctx, insertReferencesProcessor{}, NewAllocator(nextID), files)
	if !ok {
		return fmt.Errorf("failed to insert references: %w", errStopped)
	}
	log.Info("Inserted references", "count", result.inserted)

	// Keep the cache ahead of every id handed out, even after a partial
	// failure, so a re-run can never reissue an id that already reached disk.
	// A run that inserted nothing leaves the cache alone; rewriting it would
	// advance the counter on every no-op invocation.
	if ctx.Config.UseCache && result.inserted > 0 {
		next := nextID + uint32(result.inserted) + 1
		if err := cache.Write(ctx.Config.ConfigDir, next); err != nil {
			log.Error("Failed to write reference ID cache", "error", err)
		}
	}

	if result.failed {
		return errors.New("one or more files could not be updated")
	}
	return nil
}
