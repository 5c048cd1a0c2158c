// internal/app/system/workers/uploadsweep.go
package workers

import (
	"context"
	"sync"
	"time"

	"github.com/dalemusser/parley/internal/domain/models"
	"go.uber.org/zap"
)

// UploadFiles is the part of the attachment store the sweeper needs.
type UploadFiles interface {
	ListBefore(cutoff time.Time) ([]string, error)
	Remove(files []models.MediaFile) error
}

// FileRefs reports which stored files are still attached to a message.
type FileRefs interface {
	ReferencedFiles(ctx context.Context, names []string) (map[string]bool, error)
}

// UploadSweep is a background worker that removes uploaded files no
// message refers to. Such files are left behind when a process dies
// between storing an upload and persisting its message.
type UploadSweep struct {
	files    UploadFiles
	refs     FileRefs
	log      *zap.Logger
	interval time.Duration
	grace    time.Duration
	stopCh   chan struct{}
	wg       sync.WaitGroup
	now      func() time.Time
}

// NewUploadSweep creates a new sweeper.
//
// Parameters:
//   - files: the attachment store
//   - refs: the message store
//   - interval: how often to sweep (e.g., 1 hour)
//   - grace: minimum file age before it may be removed, long enough for any
//     in-flight send to finish
func NewUploadSweep(files UploadFiles, refs FileRefs, logger *zap.Logger, interval, grace time.Duration) *UploadSweep {
	return &UploadSweep{
		files:    files,
		refs:     refs,
		log:      logger,
		interval: interval,
		grace:    grace,
		stopCh:   make(chan struct{}),
		now:      time.Now,
	}
}

// Start begins the background sweep loop.
func (w *UploadSweep) Start() {
	w.wg.Add(1)
	go w.run()
	w.log.Info("upload sweep worker started",
		zap.Duration("interval", w.interval),
		zap.Duration("grace", w.grace))
}

// Stop signals the worker to stop and waits for it to finish.
func (w *UploadSweep) Stop() {
	close(w.stopCh)
	w.wg.Wait()
	w.log.Info("upload sweep worker stopped")
}

func (w *UploadSweep) run() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopCh:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			if _, err := w.Sweep(ctx); err != nil {
				w.log.Error("upload sweep failed", zap.Error(err))
			}
			cancel()
		}
	}
}

// sweepBatch bounds the size of each $in lookup.
const sweepBatch = 500

// Sweep removes unreferenced files older than the grace period and returns
// how many were removed.
func (w *UploadSweep) Sweep(ctx context.Context) (int, error) {
	names, err := w.files.ListBefore(w.now().Add(-w.grace))
	if err != nil {
		return 0, err
	}

	removed := 0
	for start := 0; start < len(names); start += sweepBatch {
		end := min(start+sweepBatch, len(names))
		batch := names[start:end]

		refs, err := w.refs.ReferencedFiles(ctx, batch)
		if err != nil {
			return removed, err
		}
		var orphans []models.MediaFile
		for _, n := range batch {
			if !refs[n] {
				orphans = append(orphans, models.MediaFile{Filename: n})
			}
		}
		if len(orphans) == 0 {
			continue
		}
		if err := w.files.Remove(orphans); err != nil {
			return removed, err
		}
		removed += len(orphans)
	}

	if removed > 0 {
		w.log.Info("removed orphaned uploads", zap.Int("count", removed))
	}
	return removed, nil
}
