package logger

import (
	"bytes"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

// fakeClock はテスト用の時計
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestTimestampLogger_Format(t *testing.T) {
	var buf bytes.Buffer
	clock := &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	l := NewWithClock(&buf, clock.Now)

	l.Info("Got camera")
	clock.Advance(1500 * time.Millisecond)
	l.Error("Unable to connect")
	clock.Advance(25 * time.Millisecond)
	l.Infof("captured frame %s", "cam1_frame_00000.png")

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	expected := []string{
		"[0] [INFO] Got camera",
		"[1500] [ERROR] Unable to connect",
		"[1525] [INFO] captured frame cam1_frame_00000.png",
	}

	if len(lines) != len(expected) {
		t.Fatalf("Expected %d lines, got %d: %q", len(expected), len(lines), buf.String())
	}
	for i := range expected {
		if lines[i] != expected[i] {
			t.Errorf("line %d: expected %q, got %q", i, expected[i], lines[i])
		}
	}
}

func TestTimestampLogger_DeviceError(t *testing.T) {
	var buf bytes.Buffer
	clock := &fakeClock{now: time.Unix(0, 0)}
	l := NewWithClock(&buf, clock.Now)

	l.DeviceError(errors.New("timeout waiting for buffer"))
	l.DeviceError(nil)

	if got := buf.String(); got != "[0] [ERROR] device: timeout waiting for buffer\n" {
		t.Errorf("Unexpected output: %q", got)
	}
}

func TestTimestampLogger_ConcurrentLinesStayWhole(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				l.Infof("worker %d line %d", n, j)
			}
		}(i)
	}
	wg.Wait()

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 400 {
		t.Fatalf("Expected 400 lines, got %d", len(lines))
	}
	for _, line := range lines {
		if !strings.HasPrefix(line, "[") || !strings.Contains(line, "] [INFO] worker ") {
			t.Errorf("Malformed line: %q", line)
		}
	}
}

func TestNop(t *testing.T) {
	// パニックしないことだけを確認
	l := Nop()
	l.Info("x")
	l.Infof("%d", 1)
	l.Error("y")
	l.Errorf("%d", 2)
	l.DeviceError(errors.New("z"))
}
