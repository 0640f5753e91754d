package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"gigecap/internal/camera"
	"gigecap/internal/config"
	"gigecap/internal/logger"
)

func TestProbe(t *testing.T) {
	tests := []struct {
		name     string
		serial   int64
		wantErr  bool
		expected string
	}{
		{"台数のみ", -1, false, "2 台のカメラが見つかりました"},
		{"接続できるカメラ", 10, false, "カメラに接続しました (serial 10)"},
		{"存在しないカメラ", 99, true, "シリアル番号 99 のカメラを取得できません"},
		{"範囲外のシリアル番号", 1 << 33, true, "シリアル番号が範囲外です"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			bus := camera.NewMockBus(10, 20)

			err := probe(context.Background(), bus, tt.serial, logger.New(&buf))
			if (err != nil) != tt.wantErr {
				t.Fatalf("probe() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !strings.Contains(buf.String(), tt.expected) {
				t.Errorf("Expected %q in output, got:\n%s", tt.expected, buf.String())
			}
			if !tt.wantErr && tt.serial > 0 && bus.Handle(camera.Serial(tt.serial)).Counts().Disconnects != 1 {
				t.Error("Expected probed handle to be disconnected")
			}
		})
	}
}

func TestProbe_ListsSimSerials(t *testing.T) {
	var buf bytes.Buffer
	bus := camera.NewSimBus(config.SimConfig{Serials: []uint32{5678, 1234}, Width: 16, Height: 16})

	if err := probe(context.Background(), bus, 1234, logger.New(&buf)); err != nil {
		t.Fatalf("probe failed: %v", err)
	}

	out := buf.String()
	first := strings.Index(out, "シミュレーションのカメラ (serial 1234)")
	second := strings.Index(out, "シミュレーションのカメラ (serial 5678)")
	if first < 0 || second < 0 || first > second {
		t.Errorf("Expected sim serials in ascending order, got:\n%s", out)
	}
	if !strings.Contains(out, "カメラに接続しました (serial 1234)") {
		t.Errorf("Expected connect log, got:\n%s", out)
	}
}
