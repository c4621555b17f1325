package progress

import (
	"fmt"
	"sync"
	"time"
)

// Bar is a byte-based progress bar for a single download.
type Bar struct {
	total     int64
	current   int64
	mu        sync.Mutex
	startTime time.Time
	lastPrint time.Time
	done      bool
}

// New creates a new progress bar. total may be 0 when the size is
// unknown; the bar then renders bytes without a percentage.
func New(total int64) *Bar {
	return &Bar{
		total:     total,
		startTime: time.Now(),
		lastPrint: time.Now(),
	}
}

// Set updates the byte counters and redraws the bar.
func (b *Bar) Set(written, total int64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.current = written
	if total > 0 {
		b.total = total
	}

	// Update display every 500ms or when complete
	now := time.Now()
	if now.Sub(b.lastPrint) > 500*time.Millisecond || (b.total > 0 && b.current >= b.total) {
		b.render()
		b.lastPrint = now
	}
}

// Finish marks the progress as complete
func (b *Bar) Finish() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.done {
		if b.total > 0 {
			b.current = b.total
		}
		b.render()
		fmt.Println() // New line after completion
		b.done = true
	}
}

// render displays the progress bar
func (b *Bar) render() {
	if b.done {
		return
	}

	elapsed := time.Since(b.startTime)

	if b.total <= 0 {
		fmt.Printf("\r%s downloaded - Elapsed: %s   ", formatBytes(b.current), formatDuration(elapsed))
		return
	}

	percentage := float64(b.current) / float64(b.total) * 100

	// Calculate ETA
	var eta time.Duration
	if b.current > 0 {
		avgTime := elapsed / time.Duration(b.current)
		eta = avgTime * time.Duration(b.total-b.current)
	}

	// Progress bar width
	barWidth := 40
	filled := int(float64(barWidth) * float64(b.current) / float64(b.total))

	bar := ""
	for i := 0; i < barWidth; i++ {
		if i < filled {
			bar += "█"
		} else {
			bar += "░"
		}
	}

	fmt.Printf("\r[%s] %s/%s (%.1f%%) - Elapsed: %s - ETA: %s   ",
		bar,
		formatBytes(b.current),
		formatBytes(b.total),
		percentage,
		formatDuration(elapsed),
		formatDuration(eta),
	)
}

// formatBytes renders a byte count in a human-readable unit.
func formatBytes(n int64) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1fMB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1fKB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%dB", n)
	}
}

// formatDuration formats a duration in a human-readable way
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
}
