package progress

import (
	"fmt"
	"sync/atomic"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
)

// Tracker tracks progress for a single transfer.
type Tracker interface {
	SetStage(stage string)
	SetProgress(current, total int64)
	Done()
}

// Manager creates trackers for individual transfers.
type Manager interface {
	NewTracker(name string) Tracker
	Wait()
}

// MPBManager implements Manager using the mpb multi-progress-bar library.
type MPBManager struct {
	container *mpb.Progress
}

// NewMPBManager creates a new mpb-based progress manager.
func NewMPBManager() *MPBManager {
	return &MPBManager{container: mpb.New(mpb.WithWidth(60))}
}

// NewTracker adds a bar labelled name.
func (m *MPBManager) NewTracker(name string) Tracker {
	t := &mpbTracker{}
	t.stage.Store("")
	bar := m.container.AddBar(100,
		mpb.PrependDecorators(
			decor.Name(name+" ", decor.WCSyncSpaceR),
		),
		mpb.AppendDecorators(
			decor.Any(func(s decor.Statistics) string {
				if n := t.bytes.Load(); n > 0 {
					return t.stage.Load().(string) + "  " + humanBytes(n)
				}
				return t.stage.Load().(string)
			}),
		),
	)
	t.bar = bar
	return t
}

// Wait waits for all progress bars to finish.
func (m *MPBManager) Wait() {
	m.container.Wait()
}

type mpbTracker struct {
	bar   *mpb.Bar
	stage atomic.Value
	bytes atomic.Int64
}

func (t *mpbTracker) SetStage(stage string) {
	t.stage.Store(stage)
	t.bytes.Store(0)
}

// SetProgress shows a percentage when the total is known and the byte count
// otherwise.
func (t *mpbTracker) SetProgress(current, total int64) {
	if total > 0 {
		t.bar.SetCurrent(current * 100 / total)
		return
	}
	t.bytes.Store(current)
}

func (t *mpbTracker) Done() {
	t.bar.SetTotal(100, false)
	t.bar.SetCurrent(100)
	t.bar.Abort(false) // complete without removing
}

// NoopManager discards all progress.
type NoopManager struct{}

func (NoopManager) NewTracker(name string) Tracker { return noopTracker{} }
func (NoopManager) Wait()                          {}

type noopTracker struct{}

func (noopTracker) SetStage(stage string)            {}
func (noopTracker) SetProgress(current, total int64) {}
func (noopTracker) Done()                            {}

func humanBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
