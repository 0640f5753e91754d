package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// キャプチャモード
const (
	ModeThreaded   = "threaded"   // カメラごとに1ゴルーチン
	ModeSequential = "sequential" // 1ゴルーチンで全カメラを巡回
)

// デバイスバックエンド
const (
	BackendSim    = "sim"
	BackendFFmpeg = "ffmpeg"
	BackendV4L2   = "v4l2"
)

// デバイス呼び出しのロック粒度
const (
	LockNone      = "none"
	LockPerHandle = "per_handle"
	LockGlobal    = "global"
)

// Config はアプリケーション全体の設定を保持する構造体
type Config struct {
	Capture CaptureConfig `yaml:"capture"`
	Camera  CameraConfig  `yaml:"camera"`
	Server  ServerConfig  `yaml:"server"`
}

// CaptureConfig はキャプチャループの設定
type CaptureConfig struct {
	Mode      string `yaml:"mode"`       // threaded / sequential
	FrameRate int    `yaml:"frame_rate"` // 目標フレームレート (0でペーシングなし)
	OutputDir string `yaml:"output_dir"` // 画像の出力先
}

// CameraConfig はデバイスアクセス層の設定
type CameraConfig struct {
	Backend      string         `yaml:"backend"`       // sim / ffmpeg / v4l2
	Lock         string         `yaml:"lock"`          // none / per_handle / global
	FrameTimeout time.Duration  `yaml:"frame_timeout"` // 1フレーム待ちの上限 (v4l2)
	Devices      []CameraDevice `yaml:"devices"`       // シリアル番号とデバイスの対応
	Sim          SimConfig      `yaml:"sim"`
}

// CameraDevice は個別カメラの設定
type CameraDevice struct {
	Serial uint32 `yaml:"serial"` // カメラのシリアル番号
	URL    string `yaml:"url"`    // デバイスパスまたはストリームURL
	Format string `yaml:"format"` // ffmpegの入力フォーマット (例: v4l2, rtsp)
}

// SimConfig はシミュレーションバスの設定
type SimConfig struct {
	Serials   []uint32 `yaml:"serials"`    // バス上に見えるシリアル番号 (空なら全て)
	Width     int      `yaml:"width"`      // 画像幅
	Height    int      `yaml:"height"`     // 画像高さ
	FrameRate int      `yaml:"frame_rate"` // センサーの出力レート (0で待たない)
}

// ServerConfig はステータスHTTPサーバーの設定
type ServerConfig struct {
	StatusAddr string `yaml:"status_addr"` // 空なら起動しない
}

// Default はデフォルト設定を返す
func Default() *Config {
	return &Config{
		Capture: CaptureConfig{
			Mode:      ModeThreaded,
			FrameRate: 0,
			OutputDir: ".",
		},
		Camera: CameraConfig{
			Backend:      BackendFFmpeg,
			Lock:         LockNone,
			FrameTimeout: 5 * time.Second,
			Sim: SimConfig{
				Width:     640,
				Height:    480,
				FrameRate: 30,
			},
		},
	}
}

// Load は設定を読み込む
// デフォルト値 → YAMLファイル (pathが空でなければ) → 環境変数 の順に上書きする
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("設定ファイルの読み込みに失敗: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("設定ファイルの解析に失敗: %w", err)
		}
	}

	cfg.Capture.Mode = getEnvOrDefault("GIGECAP_MODE", cfg.Capture.Mode)
	cfg.Capture.FrameRate = getEnvAsIntOrDefault("GIGECAP_FPS", cfg.Capture.FrameRate)
	cfg.Capture.OutputDir = getEnvOrDefault("GIGECAP_OUTPUT_DIR", cfg.Capture.OutputDir)
	cfg.Camera.Backend = getEnvOrDefault("GIGECAP_BACKEND", cfg.Camera.Backend)
	cfg.Camera.Lock = getEnvOrDefault("GIGECAP_LOCK", cfg.Camera.Lock)
	cfg.Server.StatusAddr = getEnvOrDefault("GIGECAP_STATUS_ADDR", cfg.Server.StatusAddr)

	// 設定の検証
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("設定の検証に失敗: %w", err)
	}

	return cfg, nil
}

// Validate は設定の妥当性を検証する
func (c *Config) Validate() error {
	switch c.Capture.Mode {
	case ModeThreaded, ModeSequential:
	default:
		return fmt.Errorf("無効なキャプチャモード: %q", c.Capture.Mode)
	}

	if c.Capture.FrameRate < 0 || c.Capture.FrameRate > 1000 {
		return fmt.Errorf("無効なフレームレート: %d", c.Capture.FrameRate)
	}

	if c.Capture.OutputDir == "" {
		return errors.New("出力ディレクトリが指定されていません")
	}

	switch c.Camera.Backend {
	case BackendSim, BackendFFmpeg, BackendV4L2:
	default:
		return fmt.Errorf("無効なバックエンド: %q", c.Camera.Backend)
	}

	switch c.Camera.Lock {
	case LockNone, LockPerHandle, LockGlobal:
	default:
		return fmt.Errorf("無効なロック指定: %q", c.Camera.Lock)
	}

	if c.Camera.FrameTimeout < 0 {
		return fmt.Errorf("無効なフレームタイムアウト: %s", c.Camera.FrameTimeout)
	}

	seen := make(map[uint32]bool)
	for _, d := range c.Camera.Devices {
		if d.URL == "" {
			return fmt.Errorf("シリアル %d のURLが空です", d.Serial)
		}
		if seen[d.Serial] {
			return fmt.Errorf("シリアル %d が重複しています", d.Serial)
		}
		seen[d.Serial] = true
	}

	if c.Camera.Backend == BackendSim && (c.Camera.Sim.Width <= 0 || c.Camera.Sim.Height <= 0) {
		return fmt.Errorf("無効なシミュレーション解像度: %dx%d", c.Camera.Sim.Width, c.Camera.Sim.Height)
	}

	if c.Camera.Sim.FrameRate < 0 {
		return fmt.Errorf("無効なシミュレーションのフレームレート: %d", c.Camera.Sim.FrameRate)
	}

	return nil
}

// PacingInterval はフレーム間のスリープ時間を返す
// 1000/rate ミリ秒。rateが0ならペーシングしない
func (c *Config) PacingInterval() time.Duration {
	if c.Capture.FrameRate <= 0 {
		return 0
	}
	return time.Second / time.Duration(c.Capture.FrameRate)
}

// DeviceURL はシリアル番号に対応するデバイスURLを返す
func (c *CameraConfig) DeviceURL(serial uint32) (CameraDevice, bool) {
	for _, d := range c.Devices {
		if d.Serial == serial {
			return d, true
		}
	}
	return CameraDevice{}, false
}

// getEnvOrDefault は環境変数を取得し、設定されていない場合はデフォルト値を返す
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsIntOrDefault は環境変数を整数として取得し、設定されていない場合はデフォルト値を返す
func getEnvAsIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}
