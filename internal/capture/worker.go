package capture

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"gigecap/internal/camera"
	"gigecap/internal/logger"
)

// Worker はカメラ1台のキャプチャを担う
// ハンドルはワーカーが終了するまで排他的に所有する
type Worker struct {
	id     string
	serial camera.Serial
	opts   Options
	log    logger.Logger

	handle camera.Handle

	mu        sync.RWMutex
	state     State
	next      int // 次に保存するフレームの連番
	failures  int
	lastFile  string
	lastErr   error
	startedAt time.Time
}

// NewWorker は新しいWorkerを作成する
func NewWorker(serial camera.Serial, opts Options) *Worker {
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}
	if opts.Guard == nil {
		opts.Guard = camera.NewDeviceGuard("")
	}
	return &Worker{
		id:     uuid.New().String(),
		serial: serial,
		opts:   opts,
		log:    opts.Logger,
		state:  StateDiscovering,
	}
}

// ID はワーカーの識別子を返す
func (w *Worker) ID() string {
	return w.id
}

// Serial はカメラのシリアル番号を返す
func (w *Worker) Serial() camera.Serial {
	return w.serial
}

// Run はキャプチャループを実行する
// ctxがキャンセルされるとループの区切りで停止し、nilを返す
// 検出・接続・開始に失敗した場合はエラーを返す
func (w *Worker) Run(ctx context.Context) error {
	if err := w.open(ctx); err != nil {
		return err
	}
	defer w.close()

	if err := w.start(ctx); err != nil {
		return err
	}

	for ctx.Err() == nil {
		w.step(ctx)
		if err := pace(ctx, w.opts.Pacing); err != nil {
			break
		}
	}

	w.stop(ctx)
	return nil
}

// open はカメラを検出して接続する
func (w *Worker) open(ctx context.Context) error {
	w.mu.Lock()
	w.startedAt = time.Now()
	w.state = StateDiscovering
	w.mu.Unlock()

	handle, err := camera.Open(ctx, w.opts.Bus, w.serial, w.log)
	if err != nil {
		w.fail(err)
		return fmt.Errorf("カメラ %d の接続に失敗: %w", w.serial, err)
	}

	w.handle = w.opts.Guard.Wrap(handle)
	w.setState(StateConnected)
	return nil
}

// start はキャプチャを開始する
func (w *Worker) start(ctx context.Context) error {
	if err := w.handle.StartCapture(ctx); err != nil {
		err = camera.NewDeviceError("start", w.serial, err)
		w.log.DeviceError(err)
		w.fail(err)
		return fmt.Errorf("カメラ %d のキャプチャ開始に失敗: %w", w.serial, err)
	}

	w.setState(StateCapturing)
	w.log.Infof("キャプチャを開始しました (serial %d)", w.serial)
	return nil
}

// step はフレームを1枚取得して保存する
// 取得・保存に失敗した場合は連番を進めずにスキップする
func (w *Worker) step(ctx context.Context) bool {
	frame, err := w.handle.RetrieveBuffer(ctx)
	if err != nil {
		// 停止中に中断された取得は失敗として数えない
		if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
			return false
		}
		err = camera.NewDeviceError("retrieve", w.serial, err)
		w.log.DeviceError(err)
		w.log.Errorf("カメラ %d のフレーム %05d をスキップします", w.serial, w.sequence())
		w.recordFailure(err)
		return false
	}

	seq := w.sequence()
	name, err := w.opts.Sink.Save(uint32(w.serial), seq, frame.Image)
	if err != nil {
		w.log.Errorf("カメラ %d のフレーム %05d を保存できません: %v", w.serial, seq, err)
		w.recordFailure(err)
		return false
	}

	w.mu.Lock()
	w.next++
	w.lastFile = name
	w.mu.Unlock()

	w.log.Infof("フレームを保存しました %s", name)
	return true
}

// stop はキャプチャを停止する。失敗はログに出すだけ
func (w *Worker) stop(ctx context.Context) {
	// 親のコンテキストは既にキャンセルされているので切り離す
	if err := w.handle.StopCapture(context.WithoutCancel(ctx)); err != nil {
		w.log.DeviceError(camera.NewDeviceError("stop", w.serial, err))
	}
	w.setState(StateStopped)
	w.log.Infof("キャプチャを停止しました (serial %d, %d フレーム)", w.serial, w.sequence())
}

// close は接続を閉じる
func (w *Worker) close() {
	if w.handle == nil {
		return
	}
	if err := w.handle.Disconnect(); err != nil {
		w.log.DeviceError(camera.NewDeviceError("disconnect", w.serial, err))
	}
	w.handle = nil
}

// Snapshot は現在の状態を返す
func (w *Worker) Snapshot() Snapshot {
	w.mu.RLock()
	defer w.mu.RUnlock()

	s := Snapshot{
		ID:                w.id,
		Serial:            uint32(w.serial),
		State:             w.state,
		FramesWritten:     w.next,
		RetrievalFailures: w.failures,
		LastFile:          w.lastFile,
		StartedAt:         w.startedAt,
	}
	if w.lastErr != nil {
		s.LastError = w.lastErr.Error()
	}
	return s
}

func (w *Worker) sequence() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.next
}

func (w *Worker) setState(s State) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.state = s
}

func (w *Worker) fail(err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.state = StateFailed
	w.lastErr = err
}

func (w *Worker) recordFailure(err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.failures++
	w.lastErr = err
}

// pace はフレーム間隔だけ待つ。待機中にキャンセルされたらエラーを返す
func pace(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
