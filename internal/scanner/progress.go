package scanner

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// Progress receives updates while a batch of frames is scanned.
type Progress interface {
	// OnStart is called before the first frame with the number of frames.
	OnStart(total int)
	// OnFrame is called after each frame with the size of the list so far.
	OnFrame(current, total, listed int)
	// OnError is called for a frame that could not be read or analysed.
	OnError(current int, err error)
	// OnComplete is called once with the final list size.
	OnComplete(listed int)
}

// NoProgress discards every update.
type NoProgress struct{}

func (NoProgress) OnStart(int)         {}
func (NoProgress) OnFrame(_, _, _ int) {}
func (NoProgress) OnError(int, error)  {}
func (NoProgress) OnComplete(int)      {}

// ConsoleProgress draws a progress bar, typically on stderr.
type ConsoleProgress struct {
	mu             sync.Mutex
	w              io.Writer
	width          int
	updateInterval time.Duration
	start          time.Time
	lastUpdate     time.Time
}

// NewConsoleProgress writes a 40 column bar to w.
func NewConsoleProgress(w io.Writer) *ConsoleProgress {
	return &ConsoleProgress{w: w, width: 40, updateInterval: 100 * time.Millisecond}
}

func (c *ConsoleProgress) OnStart(total int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.start = time.Now()
	c.lastUpdate = time.Time{}
	_, _ = fmt.Fprintf(c.w, "Scanning %d frame(s)\n", total)
}

func (c *ConsoleProgress) OnFrame(current, total, listed int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now()
	if now.Sub(c.lastUpdate) < c.updateInterval && current < total {
		return
	}
	c.lastUpdate = now
	if total <= 0 {
		return
	}
	filled := c.width * current / total
	bar := strings.Repeat("█", filled) + strings.Repeat("░", c.width-filled)
	status := fmt.Sprintf("\r[%s] %d/%d frames, %d barcode(s)", bar, current, total, listed)
	if elapsed := now.Sub(c.start); elapsed > 0 && current > 0 {
		status += fmt.Sprintf(" %.1f fps", float64(current)/elapsed.Seconds())
	}
	_, _ = fmt.Fprint(c.w, status)
}

func (c *ConsoleProgress) OnError(current int, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, _ = fmt.Fprintf(c.w, "\nframe %d: %v\n", current, err)
}

func (c *ConsoleProgress) OnComplete(listed int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, _ = fmt.Fprintf(c.w, "\nDone in %v, %d barcode(s) listed\n", time.Since(c.start).Round(time.Millisecond), listed)
}

// LogProgress reports through slog every interval frames.
type LogProgress struct {
	logger   *slog.Logger
	level    slog.Level
	interval int
	lastLog  int
	start    time.Time
}

// NewLogProgress logs at level every interval frames. A nil logger uses slog.Default.
func NewLogProgress(logger *slog.Logger, level slog.Level, interval int) *LogProgress {
	if logger == nil {
		logger = slog.Default()
	}
	if interval < 1 {
		interval = 1
	}
	return &LogProgress{logger: logger, level: level, interval: interval}
}

func (l *LogProgress) OnStart(total int) {
	l.start = time.Now()
	l.lastLog = 0
	l.logger.Log(context.Background(), l.level, "Scan started", "frames", total)
}

func (l *LogProgress) OnFrame(current, total, listed int) {
	if current-l.lastLog < l.interval && current != total {
		return
	}
	l.lastLog = current
	l.logger.Log(context.Background(), l.level, "Scan progress",
		"current", current,
		"total", total,
		"barcodes", listed,
		"elapsed", time.Since(l.start).Round(time.Millisecond),
	)
}

func (l *LogProgress) OnError(current int, err error) {
	l.logger.Error("Frame failed", "current", current, "error", err)
}

func (l *LogProgress) OnComplete(listed int) {
	l.logger.Log(context.Background(), l.level, "Scan completed",
		"barcodes", listed, "elapsed", time.Since(l.start).Round(time.Millisecond))
}
