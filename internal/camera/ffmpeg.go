package camera

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"image/jpeg"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"gigecap/internal/config"
)

// stopWaitDelay はffmpeg停止後にパイプの後始末を待つ上限
const stopWaitDelay = 2 * time.Second

// FFmpegBus はffmpeg経由でストリームを読むBus実装
// シリアル番号と入力URLの対応は設定で与える
type FFmpegBus struct {
	devices map[Serial]config.CameraDevice
	binary  string
}

// NewFFmpegBus は新しいFFmpegBusを作成する
func NewFFmpegBus(devices []config.CameraDevice) *FFmpegBus {
	m := make(map[Serial]config.CameraDevice, len(devices))
	for _, d := range devices {
		m[Serial(d.Serial)] = d
	}
	return &FFmpegBus{devices: m, binary: "ffmpeg"}
}

// NumCameras は設定されているカメラの台数を返す
func (b *FFmpegBus) NumCameras(_ context.Context) (int, error) {
	return len(b.devices), nil
}

// Validate はffmpegが利用可能かチェックする
func (b *FFmpegBus) Validate(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, b.binary, "-version")
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpegが見つかりません。インストールしてください: %w", err)
	}
	return nil
}

// LookupSerial は設定からシリアル番号のカメラを探す
func (b *FFmpegBus) LookupSerial(_ context.Context, serial Serial) (GUID, error) {
	if _, ok := b.devices[serial]; !ok {
		return "", ErrNotFound
	}
	return GUID(fmt.Sprintf("ffmpeg-%d", serial)), nil
}

// Connect はデバイスの存在を確認してハンドルを返す
func (b *FFmpegBus) Connect(_ context.Context, guid GUID) (Handle, error) {
	var serial Serial
	if _, err := fmt.Sscanf(string(guid), "ffmpeg-%d", &serial); err != nil {
		return nil, fmt.Errorf("無効なGUID: %s", guid)
	}
	dev, ok := b.devices[serial]
	if !ok {
		return nil, ErrNotFound
	}

	// ローカルデバイスはファイルの存在を確認する。URLはffmpeg起動時に検証される
	if strings.HasPrefix(dev.URL, "/dev/") {
		if _, err := os.Stat(dev.URL); err != nil {
			return nil, fmt.Errorf("デバイスが利用できません: %w", err)
		}
	}

	return &ffmpegHandle{serial: serial, device: dev, binary: b.binary}, nil
}

// ffmpegHandle はffmpegプロセス1つでストリームを読み続ける
type ffmpegHandle struct {
	serial Serial
	device config.CameraDevice
	binary string

	mu      sync.Mutex
	cmd     *exec.Cmd
	frames  chan []byte
	errs    chan error
	stopped chan struct{}
	closed  bool
}

func (h *ffmpegHandle) Serial() Serial {
	return h.serial
}

// args はffmpegの引数を組み立てる
func (h *ffmpegHandle) args() []string {
	args := []string{"-nostdin", "-loglevel", "error"}
	if h.device.Format != "" {
		args = append(args, "-f", h.device.Format)
	}
	return append(args,
		"-i", h.device.URL,
		"-f", "image2pipe",
		"-c:v", "mjpeg",
		"-q:v", "3",
		"-",
	)
}

// StartCapture はffmpegを起動してJPEGフレームの読み取りを開始する
func (h *ffmpegHandle) StartCapture(_ context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return ErrClosed
	}
	if h.cmd != nil {
		return fmt.Errorf("カメラ %d は既に開始されています", h.serial)
	}

	// プロセスの寿命はStopCaptureで管理するため、呼び出し元のコンテキストには結び付けない
	cmd := exec.Command(h.binary, h.args()...)
	stderr := &lockedBuffer{}
	cmd.Stderr = stderr
	// 子プロセスがstderrを握ったままでもWaitが戻るようにする
	cmd.WaitDelay = stopWaitDelay

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdoutパイプの作成に失敗: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("ffmpegの起動に失敗: %w", err)
	}

	h.cmd = cmd
	h.frames = make(chan []byte, 1)
	h.errs = make(chan error, 1)
	h.stopped = make(chan struct{})

	go h.readFrames(stdout, stderr, h.frames, h.errs, h.stopped)
	return nil
}

// readFrames はパイプからJPEGを切り出してチャンネルに送る
// 取り出されていない古いフレームは捨て、常に最新の1枚だけを残す
func (h *ffmpegHandle) readFrames(r io.Reader, stderr *lockedBuffer, frames chan []byte, errs chan<- error, stopped <-chan struct{}) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 1024*1024), 32*1024*1024)
	scanner.Split(splitJPEG)

	for scanner.Scan() {
		frame := make([]byte, len(scanner.Bytes()))
		copy(frame, scanner.Bytes())

		select {
		case <-frames:
		default:
		}
		select {
		case frames <- frame:
		case <-stopped:
			return
		}
	}

	err := scanner.Err()
	if err == nil {
		err = io.EOF
	}
	select {
	case errs <- fmt.Errorf("ffmpegのストリームが終了しました: %w (stderr: %s)", err, strings.TrimSpace(stderr.String())):
	case <-stopped:
	}
}

// RetrieveBuffer は最新のJPEGフレームを待ってデコードする
func (h *ffmpegHandle) RetrieveBuffer(ctx context.Context) (*Frame, error) {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil, ErrClosed
	}
	if h.cmd == nil {
		h.mu.Unlock()
		return nil, ErrNotStarted
	}
	frames, errs := h.frames, h.errs
	h.mu.Unlock()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case err := <-errs:
		// 次回も同じエラーを返すため戻しておく
		select {
		case errs <- err:
		default:
		}
		return nil, err
	case data := <-frames:
		img, err := jpeg.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("JPEG画像のデコードに失敗: %w", err)
		}
		return &Frame{Image: img, Timestamp: time.Now()}, nil
	}
}

// StopCapture はffmpegプロセスを停止する
func (h *ffmpegHandle) StopCapture(_ context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.cmd == nil {
		return ErrNotStarted
	}

	close(h.stopped)
	if err := h.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("ffmpegの停止に失敗: %w", err)
	}
	_ = h.cmd.Wait() // Kill後の終了ステータスは無視する
	h.cmd = nil
	return nil
}

func (h *ffmpegHandle) Disconnect() error {
	h.mu.Lock()
	running := h.cmd != nil
	h.mu.Unlock()

	if running {
		if err := h.StopCapture(context.Background()); err != nil {
			return err
		}
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return ErrClosed
	}
	h.closed = true
	return nil
}

// lockedBuffer はffmpegのstderrを受けるスレッドセーフなバッファ
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

var (
	jpegSOI = []byte{0xFF, 0xD8}
	jpegEOI = []byte{0xFF, 0xD9}
)

// splitJPEG はJPEGの開始マーカー(FF D8)から終了マーカー(FF D9)までを1トークンとして切り出す
func splitJPEG(data []byte, atEOF bool) (advance int, token []byte, err error) {
	start := bytes.Index(data, jpegSOI)
	if start == -1 {
		if atEOF {
			return len(data), nil, nil
		}
		// 末尾の1バイトはマーカーの前半かもしれないので残す
		if len(data) > 1 {
			return len(data) - 1, nil, nil
		}
		return 0, nil, nil
	}

	end := bytes.Index(data[start+2:], jpegEOI)
	if end == -1 {
		if atEOF {
			return len(data), nil, nil
		}
		// 完全なフレームがまだない。不要な先頭データだけ捨てる
		return start, nil, nil
	}

	end += start + 2 + len(jpegEOI)
	return end, data[start:end], nil
}
