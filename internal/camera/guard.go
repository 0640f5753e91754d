package camera

import (
	"context"
	"sync"

	"gigecap/internal/config"
)

// DeviceGuard はデバイス呼び出し（キャプチャ開始とフレーム取得）を直列化する
//
//   - none: ロックしない。ハンドル同士が独立している場合
//   - per_handle: ハンドルごとに1つのロック
//   - global: プロセス全体で1つのロック
type DeviceGuard struct {
	policy string
	global sync.Mutex
}

// NewDeviceGuard は新しいDeviceGuardを作成する
func NewDeviceGuard(policy string) *DeviceGuard {
	if policy == "" {
		policy = config.LockNone
	}
	return &DeviceGuard{policy: policy}
}

// Policy はロック粒度を返す
func (g *DeviceGuard) Policy() string {
	return g.policy
}

// Wrap はロック粒度に従ってハンドルを包む
func (g *DeviceGuard) Wrap(h Handle) Handle {
	switch g.policy {
	case config.LockGlobal:
		return &guardedHandle{Handle: h, mu: &g.global}
	case config.LockPerHandle:
		return &guardedHandle{Handle: h, mu: &sync.Mutex{}}
	default:
		return h
	}
}

// guardedHandle はStartCaptureとRetrieveBufferをロックで囲む
type guardedHandle struct {
	Handle
	mu sync.Locker
}

func (g *guardedHandle) StartCapture(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.Handle.StartCapture(ctx)
}

func (g *guardedHandle) RetrieveBuffer(ctx context.Context) (*Frame, error) {
	// 失敗時も含め、どの経路でもロックを解放する
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.Handle.RetrieveBuffer(ctx)
}
