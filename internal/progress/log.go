package progress

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// LogManager implements Manager with throttled line-based output for
// non-TTY environments such as CI or container logs.
type LogManager struct {
	mu  sync.Mutex
	out io.Writer
	now func() time.Time
}

// NewLogManager creates a log-based progress manager writing to out.
func NewLogManager(out io.Writer) *LogManager {
	return &LogManager{out: out, now: time.Now}
}

func (m *LogManager) NewTracker(name string) Tracker {
	return &logTracker{mgr: m, name: name, start: m.now()}
}

func (m *LogManager) Wait() {}

func (m *LogManager) log(name, msg string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fmt.Fprintf(m.out, "%s %s  %s\n", m.now().Format("15:04:05"), name, msg)
}

// logTracker implements Tracker with throttled log output.
type logTracker struct {
	mgr     *LogManager
	name    string
	start   time.Time
	stage   string
	lastLog time.Time
}

const logInterval = 20 * time.Second

func (t *logTracker) SetStage(stage string) {
	t.stage = stage
	t.lastLog = time.Time{} // next progress update prints
	t.mgr.log(t.name, stage)
}

func (t *logTracker) SetProgress(current, total int64) {
	now := t.mgr.now()
	if now.Sub(t.lastLog) < logInterval {
		return
	}
	t.lastLog = now

	if total > 0 {
		pct := float64(current) / float64(total) * 100
		t.mgr.log(t.name, fmt.Sprintf("%s  %s / %s (%.0f%%)", t.stage, humanBytes(current), humanBytes(total), pct))
	} else if current > 0 {
		t.mgr.log(t.name, fmt.Sprintf("%s  %s", t.stage, humanBytes(current)))
	}
}

func (t *logTracker) Done() {
	elapsed := t.mgr.now().Sub(t.start).Truncate(time.Second)
	t.mgr.log(t.name, fmt.Sprintf("finished in %s", elapsed))
}
