package capture

import (
	"context"

	"gigecap/internal/logger"
)

// Sequential は1つのゴルーチンで全カメラを巡回する
// 1巡（tick）ごとに配列順で各カメラから1枚ずつ取得する
type Sequential struct {
	workers []*Worker
	opts    Options
}

// NewSequential は新しいSequentialを作成する
func NewSequential(workers []*Worker, opts Options) *Sequential {
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}
	return &Sequential{workers: workers, opts: opts}
}

// Workers は巡回対象のワーカーを返す
func (s *Sequential) Workers() []*Worker {
	return s.workers
}

// Run は全カメラを接続・開始してから巡回する
// 1台でも接続・開始に失敗したら、何もキャプチャせずにエラーを返す
func (s *Sequential) Run(ctx context.Context) error {
	log := s.opts.Logger

	for i, w := range s.workers {
		if err := w.open(ctx); err != nil {
			log.Errorf("カメラ %d の読み込み中にエラーが発生しました。中止します", w.serial)
			s.closeAll(s.workers[:i])
			s.abortAll()
			return err
		}
	}
	defer s.closeAll(s.workers)

	for i, w := range s.workers {
		if err := w.start(ctx); err != nil {
			for _, started := range s.workers[:i] {
				started.stop(ctx)
			}
			s.abortAll()
			return err
		}
	}

	log.Infof("%d 台のカメラを巡回します", len(s.workers))

	ticks := 0
	for ctx.Err() == nil {
		for _, w := range s.workers {
			if ctx.Err() != nil {
				break
			}
			w.step(ctx)
		}
		ticks++
		if err := pace(ctx, s.opts.Pacing); err != nil {
			break
		}
	}

	for _, w := range s.workers {
		w.stop(ctx)
	}
	log.Infof("巡回を終了しました (%d tick)", ticks)
	return nil
}

// closeAll は接続済みのカメラを切断する
func (s *Sequential) closeAll(workers []*Worker) {
	for _, w := range workers {
		w.close()
	}
}

// abortAll は中止時に、失敗したカメラ以外をstoppedにする
func (s *Sequential) abortAll() {
	for _, w := range s.workers {
		if w.Snapshot().State != StateFailed {
			w.setState(StateStopped)
		}
	}
}
