package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// TestConfigLoad はデフォルト設定の読み込みをテストする
func TestConfigLoad(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("設定の読み込みに失敗しました: %v", err)
	}

	if cfg.Capture.Mode != ModeThreaded {
		t.Errorf("Expected mode %s, got %s", ModeThreaded, cfg.Capture.Mode)
	}
	if cfg.Capture.OutputDir != "." {
		t.Errorf("Expected output dir '.', got %s", cfg.Capture.OutputDir)
	}
	if cfg.Camera.Lock != LockNone {
		t.Errorf("Expected lock %s, got %s", LockNone, cfg.Camera.Lock)
	}
	if cfg.PacingInterval() != 0 {
		t.Errorf("Expected no pacing by default, got %s", cfg.PacingInterval())
	}
}

// TestConfigLoadYAML はYAMLファイルと環境変数の上書きをテストする
func TestConfigLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gigecap.yaml")
	data := `
capture:
  mode: sequential
  frame_rate: 10
  output_dir: /tmp/frames
camera:
  backend: sim
  lock: global
  frame_timeout: 2s
  devices:
    - serial: 1234
      url: /dev/video0
      format: v4l2
  sim:
    serials: [1234, 5678]
    width: 320
    height: 240
server:
  status_addr: 127.0.0.1:8090
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	t.Setenv("GIGECAP_FPS", "25")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Capture.Mode != ModeSequential {
		t.Errorf("Expected sequential mode, got %s", cfg.Capture.Mode)
	}
	if cfg.Capture.FrameRate != 25 {
		t.Errorf("Expected env override frame rate 25, got %d", cfg.Capture.FrameRate)
	}
	if cfg.Camera.FrameTimeout != 2*time.Second {
		t.Errorf("Expected frame timeout 2s, got %s", cfg.Camera.FrameTimeout)
	}
	if len(cfg.Camera.Sim.Serials) != 2 {
		t.Errorf("Expected 2 sim serials, got %d", len(cfg.Camera.Sim.Serials))
	}
	if cfg.Server.StatusAddr != "127.0.0.1:8090" {
		t.Errorf("Unexpected status addr: %s", cfg.Server.StatusAddr)
	}

	dev, ok := cfg.Camera.DeviceURL(1234)
	if !ok || dev.URL != "/dev/video0" || dev.Format != "v4l2" {
		t.Errorf("Unexpected device for 1234: %+v (found=%v)", dev, ok)
	}
	if _, ok := cfg.Camera.DeviceURL(9); ok {
		t.Error("Expected serial 9 to be unknown")
	}
}

func TestConfigLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("Expected error for missing file")
	}
}

// TestConfigValidation は設定の検証をテストする
func TestConfigValidation(t *testing.T) {
	testCases := []struct {
		name      string
		mutate    func(c *Config)
		expectErr bool
	}{
		{
			name:      "正常な設定",
			mutate:    func(c *Config) {},
			expectErr: false,
		},
		{
			name:      "無効なモード",
			mutate:    func(c *Config) { c.Capture.Mode = "parallel" },
			expectErr: true,
		},
		{
			name:      "負のフレームレート",
			mutate:    func(c *Config) { c.Capture.FrameRate = -1 },
			expectErr: true,
		},
		{
			name:      "空の出力ディレクトリ",
			mutate:    func(c *Config) { c.Capture.OutputDir = "" },
			expectErr: true,
		},
		{
			name:      "無効なバックエンド",
			mutate:    func(c *Config) { c.Camera.Backend = "flycapture" },
			expectErr: true,
		},
		{
			name:      "無効なロック指定",
			mutate:    func(c *Config) { c.Camera.Lock = "coarse" },
			expectErr: true,
		},
		{
			name: "重複したシリアル",
			mutate: func(c *Config) {
				c.Camera.Devices = []CameraDevice{
					{Serial: 1, URL: "/dev/video0"},
					{Serial: 1, URL: "/dev/video1"},
				}
			},
			expectErr: true,
		},
		{
			name:      "URLのないデバイス",
			mutate:    func(c *Config) { c.Camera.Devices = []CameraDevice{{Serial: 1}} },
			expectErr: true,
		},
		{
			name: "シミュレーションの解像度が0",
			mutate: func(c *Config) {
				c.Camera.Backend = BackendSim
				c.Camera.Sim.Width = 0
			},
			expectErr: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			err := cfg.Validate()
			if tc.expectErr && err == nil {
				t.Error("エラーが期待されましたが、nilが返されました")
			}
			if !tc.expectErr && err != nil {
				t.Errorf("エラーが期待されていませんでしたが、エラーが返されました: %v", err)
			}
		})
	}
}

// TestPacingInterval はフレーム間隔の計算をテストする
func TestPacingInterval(t *testing.T) {
	testCases := []struct {
		rate     int
		expected time.Duration
	}{
		{0, 0},
		{1, time.Second},
		{4, 250 * time.Millisecond},
		{30, 33333333 * time.Nanosecond},
	}

	for _, tc := range testCases {
		cfg := Default()
		cfg.Capture.FrameRate = tc.rate
		if got := cfg.PacingInterval(); got != tc.expected {
			t.Errorf("rate %d: expected %s, got %s", tc.rate, tc.expected, got)
		}
	}
}
