package scanner

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConsoleProgress(t *testing.T) {
	var buf bytes.Buffer
	p := NewConsoleProgress(&buf)
	p.OnStart(2)
	p.OnFrame(1, 2, 1)
	p.OnError(2, errors.New("unreadable"))
	p.OnFrame(2, 2, 1)
	p.OnComplete(1)

	out := buf.String()
	assert.Contains(t, out, "Scanning 2 frame(s)")
	assert.Contains(t, out, "2/2 frames, 1 barcode(s)")
	assert.Contains(t, out, "frame 2: unreadable")
	assert.Contains(t, out, "1 barcode(s) listed")
}

func TestConsoleProgressThrottles(t *testing.T) {
	var buf bytes.Buffer
	p := NewConsoleProgress(&buf)
	p.OnStart(10)
	p.OnFrame(1, 10, 0)
	p.OnFrame(2, 10, 0) // within the update interval
	assert.Equal(t, 1, strings.Count(buf.String(), "\r"))
}

func TestLogProgressInterval(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	p := NewLogProgress(logger, slog.LevelInfo, 2)
	p.OnStart(3)
	for i := 1; i <= 3; i++ {
		p.OnFrame(i, 3, i)
	}
	p.OnComplete(3)

	out := buf.String()
	assert.Equal(t, 2, strings.Count(out, "Scan progress"), "frame 2 and the last frame")
	assert.Contains(t, out, "Scan completed")
}

func TestNoProgress(t *testing.T) {
	var p Progress = NoProgress{}
	p.OnStart(1)
	p.OnFrame(1, 1, 0)
	p.OnError(1, errors.New("x"))
	p.OnComplete(0)
}
