package camera

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"gigecap/internal/config"
)

func encodeTestJPEG(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, image.NewGray(image.Rect(0, 0, 8, 8)), nil); err != nil {
		t.Fatalf("jpeg.Encode failed: %v", err)
	}
	return buf.Bytes()
}

func TestSplitJPEG(t *testing.T) {
	frame := encodeTestJPEG(t)

	// 先頭にゴミ、2フレーム、末尾に途中までのフレーム
	var stream bytes.Buffer
	stream.Write([]byte{0x00, 0x11, 0x22})
	stream.Write(frame)
	stream.Write(frame)
	stream.Write(frame[:len(frame)/2])

	scanner := bufio.NewScanner(&stream)
	scanner.Split(splitJPEG)

	var frames [][]byte
	for scanner.Scan() {
		frames = append(frames, append([]byte(nil), scanner.Bytes()...))
	}
	if err := scanner.Err(); err != nil {
		t.Fatalf("scanner error: %v", err)
	}

	if len(frames) != 2 {
		t.Fatalf("Expected 2 frames, got %d", len(frames))
	}
	for i, f := range frames {
		if !bytes.Equal(f, frame) {
			t.Errorf("frame %d differs from the encoded JPEG", i)
		}
		if _, err := jpeg.Decode(bytes.NewReader(f)); err != nil {
			t.Errorf("frame %d failed to decode: %v", i, err)
		}
	}
}

func TestSplitJPEG_NoMarker(t *testing.T) {
	advance, token, err := splitJPEG([]byte{0x01, 0x02, 0xFF}, false)
	if err != nil || token != nil {
		t.Fatalf("Unexpected result: token=%v err=%v", token, err)
	}
	// 末尾の0xFFはマーカーの前半として残す
	if advance != 2 {
		t.Errorf("Expected advance 2, got %d", advance)
	}
}

func TestFFmpegBus_Lookup(t *testing.T) {
	ctx := context.Background()
	bus := NewFFmpegBus([]config.CameraDevice{
		{Serial: 1234, URL: "rtsp://192.0.2.10/stream", Format: "rtsp"},
	})

	n, _ := bus.NumCameras(ctx)
	if n != 1 {
		t.Errorf("Expected 1 camera, got %d", n)
	}

	if _, err := bus.LookupSerial(ctx, 1); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}

	guid, err := bus.LookupSerial(ctx, 1234)
	if err != nil {
		t.Fatalf("LookupSerial failed: %v", err)
	}
	handle, err := bus.Connect(ctx, guid)
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	if _, err := handle.RetrieveBuffer(ctx); !errors.Is(err, ErrNotStarted) {
		t.Errorf("Expected ErrNotStarted, got %v", err)
	}

	args := handle.(*ffmpegHandle).args()
	expected := []string{"-nostdin", "-loglevel", "error", "-f", "rtsp", "-i", "rtsp://192.0.2.10/stream", "-f", "image2pipe", "-c:v", "mjpeg", "-q:v", "3", "-"}
	if len(args) != len(expected) {
		t.Fatalf("Expected args %v, got %v", expected, args)
	}
	for i := range expected {
		if args[i] != expected[i] {
			t.Errorf("arg %d: expected %q, got %q", i, expected[i], args[i])
		}
	}

	if err := handle.Disconnect(); err != nil {
		t.Fatalf("Disconnect failed: %v", err)
	}
}

func TestFFmpegBus_ConnectMissingDevice(t *testing.T) {
	ctx := context.Background()
	bus := NewFFmpegBus([]config.CameraDevice{
		{Serial: 1, URL: "/dev/video-does-not-exist", Format: "v4l2"},
	})

	guid, err := bus.LookupSerial(ctx, 1)
	if err != nil {
		t.Fatalf("LookupSerial failed: %v", err)
	}
	if _, err := bus.Connect(ctx, guid); err == nil {
		t.Error("Expected error for missing device")
	}
}

func TestFFmpegBus_ValidateMissingBinary(t *testing.T) {
	bus := NewFFmpegBus(nil)
	bus.binary = "/nonexistent/ffmpeg"

	if err := bus.Validate(context.Background()); err == nil {
		t.Error("Expected error for missing ffmpeg binary")
	}
}

// writeFakeFFmpeg は幅8・16・24のJPEGを100ms間隔で出力し、その後は待ち続けるスクリプトを作る
func writeFakeFFmpeg(t *testing.T) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("シェルスクリプトが必要")
	}

	dir := t.TempDir()
	script := "#!/bin/sh\n"
	for i, w := range []int{8, 16, 24} {
		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, image.NewGray(image.Rect(0, 0, w, 8)), nil); err != nil {
			t.Fatalf("jpeg.Encode failed: %v", err)
		}
		name := filepath.Join(dir, fmt.Sprintf("frame%d.jpg", i))
		if err := os.WriteFile(name, buf.Bytes(), 0644); err != nil {
			t.Fatalf("WriteFile failed: %v", err)
		}
		script += fmt.Sprintf("cat '%s'\nsleep 0.1\n", name)
	}
	script += "exec sleep 30\n"

	path := filepath.Join(dir, "ffmpeg")
	if err := os.WriteFile(path, []byte(script), 0755); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	return path
}

func TestFFmpegHandle_RetrievesLatestFrame(t *testing.T) {
	ctx := context.Background()
	bus := NewFFmpegBus([]config.CameraDevice{
		{Serial: 1, URL: "rtsp://192.0.2.10/stream"},
	})
	bus.binary = writeFakeFFmpeg(t)

	guid, err := bus.LookupSerial(ctx, 1)
	if err != nil {
		t.Fatalf("LookupSerial failed: %v", err)
	}
	handle, err := bus.Connect(ctx, guid)
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	if err := handle.StartCapture(ctx); err != nil {
		t.Fatalf("StartCapture failed: %v", err)
	}

	// 3枚とも出力され終わるまで取り出さない
	time.Sleep(600 * time.Millisecond)

	retrieveCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	frame, err := handle.RetrieveBuffer(retrieveCtx)
	if err != nil {
		t.Fatalf("RetrieveBuffer failed: %v", err)
	}
	if w := frame.Image.Bounds().Dx(); w != 24 {
		t.Errorf("Expected latest frame (width 24), got width %d", w)
	}

	// 新しいフレームが来るまでは返さない
	waitCtx, waitCancel := context.WithTimeout(ctx, 100*time.Millisecond)
	defer waitCancel()
	if _, err := handle.RetrieveBuffer(waitCtx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected DeadlineExceeded, got %v", err)
	}

	start := time.Now()
	if err := handle.StopCapture(ctx); err != nil {
		t.Fatalf("StopCapture failed: %v", err)
	}
	if err := handle.Disconnect(); err != nil {
		t.Fatalf("Disconnect failed: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("Stopping ffmpeg took too long: %s", elapsed)
	}

	if _, err := handle.RetrieveBuffer(ctx); !errors.Is(err, ErrClosed) {
		t.Errorf("Expected ErrClosed, got %v", err)
	}
}
