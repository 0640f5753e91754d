package capture

import (
	"time"

	"gigecap/internal/camera"
	"gigecap/internal/logger"
	"gigecap/internal/storage"
)

// State はワーカーの状態を表す
type State string

const (
	StateDiscovering State = "discovering" // カメラを検出・接続中
	StateConnected   State = "connected"   // 接続済み、キャプチャ開始前
	StateCapturing   State = "capturing"   // フレーム取得ループ中
	StateStopped     State = "stopped"     // 正常に停止した
	StateFailed      State = "failed"      // 検出・接続・開始に失敗した
)

// Options はワーカーが使う依存関係
type Options struct {
	Bus    camera.Bus
	Sink   storage.Sink
	Logger logger.Logger
	Guard  *camera.DeviceGuard

	// Pacing はフレーム（逐次モードでは1巡）ごとのスリープ時間。0なら待たない
	Pacing time.Duration
}

// Snapshot はワーカーの現在の状態
type Snapshot struct {
	ID                string    `json:"id"`
	Serial            uint32    `json:"serial"`
	State             State     `json:"state"`
	FramesWritten     int       `json:"frames_written"`
	RetrievalFailures int       `json:"retrieval_failures"`
	LastFile          string    `json:"last_file,omitempty"`
	LastError         string    `json:"last_error,omitempty"`
	StartedAt         time.Time `json:"started_at"`
}
