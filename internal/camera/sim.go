package camera

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fogleman/gg"

	"gigecap/internal/config"
)

// SimBus は合成画像を返す仮想GigEバス
// 実機のないデモや結合テストに使う
type SimBus struct {
	serials   map[Serial]bool // nilなら任意のシリアルを受け付ける
	width     int
	height    int
	frameRate int
}

// NewSimBus は新しいSimBusを作成する
func NewSimBus(cfg config.SimConfig) *SimBus {
	var serials map[Serial]bool
	if len(cfg.Serials) > 0 {
		serials = make(map[Serial]bool, len(cfg.Serials))
		for _, s := range cfg.Serials {
			serials[Serial(s)] = true
		}
	}
	return &SimBus{
		serials:   serials,
		width:     cfg.Width,
		height:    cfg.Height,
		frameRate: cfg.FrameRate,
	}
}

// NumCameras はバス上の仮想カメラの台数を返す
// シリアルを限定していない場合は0を返す
func (b *SimBus) NumCameras(_ context.Context) (int, error) {
	return len(b.serials), nil
}

// LookupSerial はシリアル番号からGUIDを生成する
func (b *SimBus) LookupSerial(_ context.Context, serial Serial) (GUID, error) {
	if b.serials != nil && !b.serials[serial] {
		return "", ErrNotFound
	}
	return GUID(fmt.Sprintf("sim-%d", serial)), nil
}

// Connect は仮想カメラに接続する
func (b *SimBus) Connect(_ context.Context, guid GUID) (Handle, error) {
	var serial Serial
	if _, err := fmt.Sscanf(string(guid), "sim-%d", &serial); err != nil || !strings.HasPrefix(string(guid), "sim-") {
		return nil, fmt.Errorf("無効なGUID: %s", guid)
	}
	if b.serials != nil && !b.serials[serial] {
		return nil, ErrNotFound
	}

	h := &simHandle{
		serial: serial,
		width:  b.width,
		height: b.height,
	}
	if b.frameRate > 0 {
		h.interval = time.Second / time.Duration(b.frameRate)
	}
	return h, nil
}

// Serials はバス上のシリアル番号を昇順で返す
func (b *SimBus) Serials() []Serial {
	out := make([]Serial, 0, len(b.serials))
	for s := range b.serials {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// simHandle は仮想カメラ1台
type simHandle struct {
	serial   Serial
	width    int
	height   int
	interval time.Duration

	mu       sync.Mutex
	started  bool
	closed   bool
	sequence int
	next     time.Time
}

func (h *simHandle) Serial() Serial {
	return h.serial
}

func (h *simHandle) StartCapture(_ context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return ErrClosed
	}
	h.started = true
	h.next = time.Now()
	return nil
}

func (h *simHandle) RetrieveBuffer(ctx context.Context) (*Frame, error) {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil, ErrClosed
	}
	if !h.started {
		h.mu.Unlock()
		return nil, ErrNotStarted
	}
	wait := time.Until(h.next)
	h.mu.Unlock()

	// センサーの出力レートを模して次の露光まで待つ
	if err := sleepContext(ctx, wait); err != nil {
		return nil, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	seq := h.sequence
	h.sequence++
	h.next = time.Now().Add(h.interval)

	return &Frame{
		Image:     renderTestPattern(h.width, h.height, h.serial, seq),
		Timestamp: time.Now(),
	}, nil
}

func (h *simHandle) StopCapture(_ context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.started {
		return ErrNotStarted
	}
	h.started = false
	return nil
}

func (h *simHandle) Disconnect() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return ErrClosed
	}
	h.closed = true
	h.started = false
	return nil
}

// testPatternColors はカラーバーの色
var testPatternColors = []color.RGBA{
	{192, 192, 192, 255},
	{192, 192, 0, 255},
	{0, 192, 192, 255},
	{0, 192, 0, 255},
	{192, 0, 192, 255},
	{192, 0, 0, 255},
	{0, 0, 192, 255},
}

// renderTestPattern はカラーバーにシリアル番号とフレーム番号を描いた画像を作る
func renderTestPattern(width, height int, serial Serial, seq int) image.Image {
	dc := gg.NewContext(width, height)

	barWidth := float64(width) / float64(len(testPatternColors))
	for i, c := range testPatternColors {
		dc.SetColor(c)
		dc.DrawRectangle(float64(i)*barWidth, 0, barWidth, float64(height))
		dc.Fill()
	}

	// フレームごとに動くマーカー
	x := float64(seq%width) + 0.5
	dc.SetRGB(1, 1, 1)
	dc.DrawCircle(x, float64(height)/2, float64(height)/16)
	dc.Fill()

	dc.SetRGB(0, 0, 0)
	dc.DrawRectangle(0, float64(height)-24, float64(width), 24)
	dc.Fill()
	dc.SetRGB(1, 1, 1)
	dc.DrawStringAnchored(fmt.Sprintf("cam %d  frame %05d", serial, seq), float64(width)/2, float64(height)-12, 0.5, 0.5)

	return dc.Image()
}
