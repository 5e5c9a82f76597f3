package codegen

import (
	"os"
	"runtime"
	"sync"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/jamesmistry/breadlog/internal/config"
	"github.com/jamesmistry/breadlog/internal/parser"
)

// Processor is one per-file reference computation. Map consumes a single
// file's extracted entries and returns that file's result, or ok=false to
// contribute nothing; Reduce folds the per-file results into the
// invocation-wide result. Map must be safe to call from multiple goroutines:
// different files may be processed concurrently, and params is the only
// state shared between them.
type Processor[P, M any] interface {
	Map(path string, contents string, params P, entries []parser.LogRefEntry) (M, bool)
	Reduce(results []M) (M, bool)
}

// processReferences loads each file, extracts its log reference entries and
// feeds them through the processor's map step, then reduces. Per-file map
// steps run concurrently; a file's own read, extract and map are sequential.
// The stop flag is checked before each file is scheduled and once more before
// reduce; when it is set the whole run is abandoned with ok=false. A file
// that cannot be read is logged and skipped without failing the run.
func processReferences[P, M any](ctx *config.Context, proc Processor[P, M], params P, files []string) (M, bool) {
	var zero M

	var (
		mu      sync.Mutex
		results []M
	)

	group := new(errgroup.Group)
	group.SetLimit(runtime.NumCPU())

	for _, path := range files {
		if ctx.StopCommanded.Load() {
			break
		}
		path := path
		group.Go(func() error {
			contents, err := os.ReadFile(path)
			if err != nil {
				log.Error("Failed to read file", "path", path, "error", err)
				return nil
			}
			entries := parser.FindReferences(string(contents), &ctx.Config)
			if result, ok := proc.Map(path, string(contents), params, entries); ok {
				mu.Lock()
				results = append(results, result)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = group.Wait()

	if ctx.StopCommanded.Load() {
		return zero, false
	}
	return proc.Reduce(results)
}
