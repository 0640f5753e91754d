// Package main はバス上のカメラを調べるコマンドの実装です
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"gigecap/internal/camera"
	"gigecap/internal/config"
	"gigecap/internal/logger"
)

func main() {
	// コマンドラインオプション
	var (
		configPath = flag.String("config", "", "設定ファイルのパス (YAML)")
		backend    = flag.String("backend", "", "デバイスバックエンド: sim / ffmpeg / v4l2")
		serial     = flag.Int64("serial", -1, "接続を試すシリアル番号")
		timeout    = flag.Duration("timeout", 10*time.Second, "全体のタイムアウト")
		help       = flag.Bool("help", false, "ヘルプを表示")
	)

	flag.Parse()

	// ヘルプ表示
	if *help {
		fmt.Println("gigecap probe")
		fmt.Println()
		fmt.Println("使用方法:")
		fmt.Println("  probe [オプション]")
		fmt.Println()
		fmt.Println("オプション:")
		flag.PrintDefaults()
		os.Exit(0)
	}

	log := logger.NewStdout()

	// 設定を読み込む
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Errorf("設定の読み込みに失敗しました: %v", err)
		os.Exit(1)
	}
	if *backend != "" {
		cfg.Camera.Backend = *backend
	}

	bus, err := camera.NewBus(cfg.Camera)
	if err != nil {
		log.Errorf("バスの作成に失敗しました: %v", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if err := probe(ctx, bus, *serial, log); err != nil {
		os.Exit(1)
	}
}

// validator は利用前に外部コマンドなどを確認できるBus
type validator interface {
	Validate(ctx context.Context) error
}

// probe はカメラ台数を表示し、serialが指定されていれば接続できるかを確かめる
func probe(ctx context.Context, bus camera.Bus, serial int64, log logger.Logger) error {
	if v, ok := bus.(validator); ok {
		if err := v.Validate(ctx); err != nil {
			log.Errorf("バスを利用できません: %v", err)
			return err
		}
	}

	n, err := bus.NumCameras(ctx)
	if err != nil {
		log.DeviceError(err)
		log.Error("バスからカメラ台数を取得できません")
		return err
	}
	log.Infof("%d 台のカメラが見つかりました", n)
	if sim, ok := bus.(*camera.SimBus); ok {
		for _, s := range sim.Serials() {
			log.Infof("シミュレーションのカメラ (serial %d)", s)
		}
	}

	if serial < 0 {
		return nil
	}
	if serial > int64(^uint32(0)) {
		err := errors.New("シリアル番号が範囲外です")
		log.Error(err.Error())
		return err
	}

	handle, err := camera.Open(ctx, bus, camera.Serial(serial), log)
	if err != nil {
		return err
	}
	if err := handle.Disconnect(); err != nil {
		log.DeviceError(camera.NewDeviceError("disconnect", handle.Serial(), err))
	}
	return nil
}
