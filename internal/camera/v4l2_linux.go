//go:build linux

package camera

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"os"
	"sync"
	"time"

	"github.com/blackjack/webcam"

	"gigecap/internal/config"
)

// V4L2のフォーマット名
const (
	formatMJPEG = "Motion-JPEG"
	formatYUYV  = "YUYV 4:2:2"
)

// V4L2Bus はV4L2デバイスを直接読むBus実装
// シリアル番号Nは設定された対応がなければ /dev/videoN に割り当てる
type V4L2Bus struct {
	devices map[Serial]string
	timeout time.Duration
}

// NewV4L2Bus は新しいV4L2Busを作成する
func NewV4L2Bus(devices []config.CameraDevice, timeout time.Duration) (*V4L2Bus, error) {
	m := make(map[Serial]string, len(devices))
	for _, d := range devices {
		m[Serial(d.Serial)] = d.URL
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &V4L2Bus{devices: m, timeout: timeout}, nil
}

// NumCameras は /dev/video* の数を返す
func (b *V4L2Bus) NumCameras(_ context.Context) (int, error) {
	devices, err := scanVideoDevices()
	if err != nil {
		return 0, err
	}
	return len(devices), nil
}

// LookupSerial はシリアル番号に対応するデバイスパスを返す
func (b *V4L2Bus) LookupSerial(_ context.Context, serial Serial) (GUID, error) {
	path, ok := b.devices[serial]
	if !ok {
		path = fmt.Sprintf("/dev/video%d", serial)
	}
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	return GUID(path), nil
}

// Connect はデバイスを開いてフォーマットを設定する
func (b *V4L2Bus) Connect(_ context.Context, guid GUID) (Handle, error) {
	path := string(guid)
	cam, err := webcam.Open(path)
	if err != nil {
		return nil, fmt.Errorf("デバイスのオープンに失敗: %w", err)
	}

	format, name, err := selectPixelFormat(cam)
	if err != nil {
		_ = cam.Close()
		return nil, err
	}

	size, err := largestFrameSize(cam, format)
	if err != nil {
		_ = cam.Close()
		return nil, err
	}

	_, w, h, err := cam.SetImageFormat(format, size.MaxWidth, size.MaxHeight)
	if err != nil {
		_ = cam.Close()
		return nil, fmt.Errorf("画像フォーマットの設定に失敗: %w", err)
	}
	if err := cam.SetBufferCount(2); err != nil {
		_ = cam.Close()
		return nil, fmt.Errorf("バッファ数の設定に失敗: %w", err)
	}

	return &v4l2Handle{
		serial:  serialFor(b.devices, path),
		cam:     cam,
		format:  name,
		width:   int(w),
		height:  int(h),
		timeout: b.timeout,
	}, nil
}

// serialFor はデバイスパスからシリアル番号を逆引きする
func serialFor(devices map[Serial]string, path string) Serial {
	for s, p := range devices {
		if p == path {
			return s
		}
	}
	if n := extractDeviceNumber(path); n >= 0 {
		return Serial(n)
	}
	return 0
}

// selectPixelFormat はMJPEGを優先し、なければYUYVを選ぶ
func selectPixelFormat(cam *webcam.Webcam) (webcam.PixelFormat, string, error) {
	formats := cam.GetSupportedFormats()
	for _, want := range []string{formatMJPEG, formatYUYV} {
		for f, desc := range formats {
			if desc == want {
				return f, desc, nil
			}
		}
	}
	return 0, "", fmt.Errorf("対応するピクセルフォーマットがありません: %v", formats)
}

// largestFrameSize は最大の固定解像度を選ぶ
func largestFrameSize(cam *webcam.Webcam, format webcam.PixelFormat) (webcam.FrameSize, error) {
	var best webcam.FrameSize
	for _, s := range cam.GetSupportedFrameSizes(format) {
		if s.MaxWidth*s.MaxHeight > best.MaxWidth*best.MaxHeight {
			best = s
		}
	}
	if best.MaxWidth == 0 {
		return best, fmt.Errorf("解像度を取得できません")
	}
	return best, nil
}

// v4l2Handle はV4L2デバイス1台
type v4l2Handle struct {
	serial  Serial
	cam     *webcam.Webcam
	format  string
	width   int
	height  int
	timeout time.Duration

	mu      sync.Mutex
	started bool
	closed  bool
}

func (h *v4l2Handle) Serial() Serial {
	return h.serial
}

func (h *v4l2Handle) StartCapture(_ context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return ErrClosed
	}
	if err := h.cam.StartStreaming(); err != nil {
		return fmt.Errorf("ストリーミングの開始に失敗: %w", err)
	}
	h.started = true
	return nil
}

// RetrieveBuffer は1秒刻みでフレームを待ち、コンテキストとタイムアウトを確認する
func (h *v4l2Handle) RetrieveBuffer(ctx context.Context) (*Frame, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, ErrClosed
	}
	if !h.started {
		return nil, ErrNotStarted
	}

	deadline := time.Now().Add(h.timeout)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		err := h.cam.WaitForFrame(1)
		switch err.(type) {
		case nil:
		case *webcam.Timeout:
			if time.Now().After(deadline) {
				return nil, fmt.Errorf("フレーム待ちがタイムアウトしました (%s)", h.timeout)
			}
			continue
		default:
			return nil, fmt.Errorf("フレーム待ちに失敗: %w", err)
		}

		data, err := h.cam.ReadFrame()
		if err != nil {
			return nil, fmt.Errorf("フレームの読み取りに失敗: %w", err)
		}
		if len(data) == 0 {
			continue
		}

		img, err := decodeV4L2Frame(h.format, data, h.width, h.height)
		if err != nil {
			return nil, err
		}
		return &Frame{Image: img, Timestamp: time.Now()}, nil
	}
}

func (h *v4l2Handle) StopCapture(_ context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.started {
		return ErrNotStarted
	}
	h.started = false
	if err := h.cam.StopStreaming(); err != nil {
		return fmt.Errorf("ストリーミングの停止に失敗: %w", err)
	}
	return nil
}

func (h *v4l2Handle) Disconnect() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return ErrClosed
	}
	h.closed = true
	return h.cam.Close()
}

// decodeV4L2Frame はV4L2のフレームを画像に変換する
func decodeV4L2Frame(format string, data []byte, width, height int) (image.Image, error) {
	switch format {
	case formatMJPEG:
		img, err := jpeg.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("JPEG画像のデコードに失敗: %w", err)
		}
		return img, nil
	case formatYUYV:
		return yuyvToYCbCr(data, width, height)
	default:
		return nil, fmt.Errorf("未対応のフォーマット: %s", format)
	}
}
