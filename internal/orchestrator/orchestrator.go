package orchestrator

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"gigecap/internal/camera"
	"gigecap/internal/capture"
	"gigecap/internal/config"
	"gigecap/internal/logger"
	"gigecap/internal/storage"
)

const (
	ExitOK      = 0
	ExitFailure = -1
)

// Options はOrchestratorの依存関係
type Options struct {
	Config *config.Config
	Bus    camera.Bus
	Sink   storage.Sink
	Logger logger.Logger

	// Output は使い方の出力先。nilなら標準出力
	Output io.Writer
}

// Orchestrator はワーカーの起動と終了待ちを担う
type Orchestrator struct {
	cfg   *config.Config
	bus   camera.Bus
	sink  storage.Sink
	log   logger.Logger
	out   io.Writer
	guard *camera.DeviceGuard

	mu        sync.RWMutex
	workers   []*capture.Worker
	startedAt time.Time
}

// New は新しいOrchestratorを作成する
func New(opts Options) *Orchestrator {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}
	out := opts.Output
	if out == nil {
		out = os.Stdout
	}

	return &Orchestrator{
		cfg:       cfg,
		bus:       opts.Bus,
		sink:      opts.Sink,
		log:       log,
		out:       out,
		guard:     camera.NewDeviceGuard(cfg.Camera.Lock),
		startedAt: time.Now(),
	}
}

// PrintUsage は使い方を書き出す
func PrintUsage(w io.Writer) {
	fmt.Fprintln(w, "使用方法:")
	fmt.Fprintln(w, "  gigecap [オプション] {cam0_serial} [cam1_serial...]")
}

// Run は引数のシリアル番号ごとにワーカーを起動し、全ワーカーの終了を待つ
// ctxがキャンセルされると各ワーカーはループの区切りで停止する
func (o *Orchestrator) Run(ctx context.Context, args []string) int {
	serials := ParseSerials(args)
	if len(serials) == 0 {
		PrintUsage(o.out)
		return ExitFailure
	}

	o.logNumberOfCameras(ctx)
	o.log.Infof("%d 台のカメラを起動します", len(serials))

	workers := o.buildWorkers(serials)

	switch o.cfg.Capture.Mode {
	case config.ModeSequential:
		return o.runSequential(ctx, workers)
	default:
		return o.runThreaded(ctx, workers)
	}
}

// Mode はキャプチャモードを返す
func (o *Orchestrator) Mode() string {
	return o.cfg.Capture.Mode
}

// StartedAt は起動時刻を返す
func (o *Orchestrator) StartedAt() time.Time {
	return o.startedAt
}

// Workers は起動したワーカーを返す
func (o *Orchestrator) Workers() []*capture.Worker {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return append([]*capture.Worker(nil), o.workers...)
}

// Snapshots は全ワーカーの状態を引数の順で返す
func (o *Orchestrator) Snapshots() []capture.Snapshot {
	workers := o.Workers()
	snapshots := make([]capture.Snapshot, 0, len(workers))
	for _, w := range workers {
		snapshots = append(snapshots, w.Snapshot())
	}
	return snapshots
}

// Snapshot はシリアル番号のワーカーの状態を返す
func (o *Orchestrator) Snapshot(serial uint32) (capture.Snapshot, bool) {
	for _, w := range o.Workers() {
		if uint32(w.Serial()) == serial {
			return w.Snapshot(), true
		}
	}
	return capture.Snapshot{}, false
}

func (o *Orchestrator) buildWorkers(serials []camera.Serial) []*capture.Worker {
	opts := o.workerOptions()
	workers := make([]*capture.Worker, 0, len(serials))
	for _, s := range serials {
		workers = append(workers, capture.NewWorker(s, opts))
	}

	o.mu.Lock()
	o.workers = workers
	o.mu.Unlock()

	return workers
}

func (o *Orchestrator) workerOptions() capture.Options {
	return capture.Options{
		Bus:    o.bus,
		Sink:   o.sink,
		Logger: o.log,
		Guard:  o.guard,
		Pacing: o.cfg.PacingInterval(),
	}
}

// runThreaded はカメラごとにゴルーチンを起動する
func (o *Orchestrator) runThreaded(ctx context.Context, workers []*capture.Worker) int {
	var wg sync.WaitGroup
	var failed atomic.Bool

	for _, w := range workers {
		wg.Add(1)
		go func(w *capture.Worker) {
			defer wg.Done()
			if err := w.Run(ctx); err != nil {
				o.log.Errorf("カメラ %d のワーカーを終了します: %v", w.Serial(), err)
				failed.Store(true)
			}
		}(w)
	}

	wg.Wait()

	if failed.Load() {
		return ExitFailure
	}
	o.log.Info("全カメラのキャプチャを終了しました")
	return ExitOK
}

// runSequential は全カメラを1ゴルーチンで巡回する
func (o *Orchestrator) runSequential(ctx context.Context, workers []*capture.Worker) int {
	seq := capture.NewSequential(workers, o.workerOptions())
	if err := seq.Run(ctx); err != nil {
		o.log.Errorf("キャプチャを中止しました: %v", err)
		return ExitFailure
	}
	o.log.Info("全カメラのキャプチャを終了しました")
	return ExitOK
}

// logNumberOfCameras はバス上のカメラ台数をログに出す。失敗しても処理は続ける
func (o *Orchestrator) logNumberOfCameras(ctx context.Context) {
	n, err := o.bus.NumCameras(ctx)
	if err != nil {
		o.log.DeviceError(err)
		o.log.Error("バスからカメラ台数を取得できません")
		return
	}
	o.log.Infof("%d 台のカメラが見つかりました", n)
}
