package app

import (
	"strings"
	"sync"
	"time"
)

const (
	logPaneLimit        = 300
	logDebounceInterval = 150 * time.Millisecond
)

// logCapture keeps the last lines written to the logger and hands the joined
// text to flush, coalescing bursts of writes.
type logCapture struct {
	mu    sync.Mutex
	lines []string
	limit int
	flush func(string)

	updateCh chan struct{}
	stopCh   chan struct{}
}

func newLogCapture(limit int) *logCapture {
	return &logCapture{limit: limit}
}

func (l *logCapture) Write(p []byte) (int, error) {
	text := strings.ReplaceAll(string(p), "\r\n", "\n")
	l.mu.Lock()
	for _, part := range strings.Split(text, "\n") {
		if part == "" {
			continue
		}
		l.lines = append(l.lines, part)
	}
	if len(l.lines) > l.limit {
		l.lines = l.lines[len(l.lines)-l.limit:]
	}
	ch := l.updateCh
	l.mu.Unlock()

	if ch == nil {
		return len(p), nil
	}
	select {
	case ch <- struct{}{}:
	default:
	}
	return len(p), nil
}

// Text returns the buffered lines.
func (l *logCapture) Text() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return strings.Join(l.lines, "\n")
}

// start begins delivering updates to flush. Lines written earlier are
// delivered immediately.
func (l *logCapture) start(flush func(string)) {
	l.mu.Lock()
	if l.updateCh != nil {
		l.mu.Unlock()
		return
	}
	l.flush = flush
	l.updateCh = make(chan struct{}, 1)
	l.stopCh = make(chan struct{})
	l.mu.Unlock()
	flush(l.Text())
	go l.updateLoop()
}

func (l *logCapture) stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.stopCh != nil {
		close(l.stopCh)
		l.stopCh = nil
	}
}

func (l *logCapture) updateLoop() {
	l.mu.Lock()
	updateCh, stopCh := l.updateCh, l.stopCh
	l.mu.Unlock()

	timer := time.NewTimer(logDebounceInterval)
	if !timer.Stop() {
		<-timer.C
	}
	for {
		select {
		case <-stopCh:
			timer.Stop()
			return
		case <-updateCh:
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(logDebounceInterval)
		case <-timer.C:
			l.flush(l.Text())
		}
	}
}
