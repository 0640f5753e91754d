package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"

	"gigecap/internal/camera"
	"gigecap/internal/config"
	"gigecap/internal/logger"
	"gigecap/internal/orchestrator"
	"gigecap/internal/server"
	"gigecap/internal/storage"
)

func main() {
	os.Exit(run())
}

func run() int {
	// 経過時間はプロセス開始から数える
	log := logger.NewStdout()

	// コマンドラインオプション
	var opts options
	fs := newFlagSet(&opts)
	fs.Usage = func() { printHelp(fs, os.Stdout) }

	args, err := parseArgs(fs, os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return orchestrator.ExitOK
		}
		return orchestrator.ExitFailure
	}

	// ヘルプ表示
	if opts.help {
		printHelp(fs, os.Stdout)
		return orchestrator.ExitOK
	}

	// 設定を読み込む
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		log.Errorf("設定の読み込みに失敗しました: %v", err)
		return orchestrator.ExitFailure
	}

	// コマンドラインオプションで設定を上書き
	if opts.mode != "" {
		cfg.Capture.Mode = opts.mode
	}
	if opts.fps >= 0 {
		cfg.Capture.FrameRate = opts.fps
	}
	if opts.outDir != "" {
		cfg.Capture.OutputDir = opts.outDir
	}
	if opts.backend != "" {
		cfg.Camera.Backend = opts.backend
	}
	if opts.lock != "" {
		cfg.Camera.Lock = opts.lock
	}
	if opts.statusAddr != "" {
		cfg.Server.StatusAddr = opts.statusAddr
	}
	if err := cfg.Validate(); err != nil {
		log.Errorf("設定が不正です: %v", err)
		return orchestrator.ExitFailure
	}

	bus, err := camera.NewBus(cfg.Camera)
	if err != nil {
		log.Errorf("バスの作成に失敗しました: %v", err)
		return orchestrator.ExitFailure
	}

	sink, err := storage.NewFileSink(cfg.Capture.OutputDir)
	if err != nil {
		log.Errorf("出力先の準備に失敗しました: %v", err)
		return orchestrator.ExitFailure
	}
	log.Infof("画像の出力先: %s", sink.Dir())

	// SIGINT/SIGTERMで全ワーカーを停止する
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	orc := orchestrator.New(orchestrator.Options{
		Config: cfg,
		Bus:    bus,
		Sink:   sink,
		Logger: log,
	})

	// ステータスサーバーを起動
	srvDone := make(chan struct{})
	if cfg.Server.StatusAddr != "" {
		// ログの形式を揃えるため、ginのデバッグ出力は抑える
		gin.SetMode(gin.ReleaseMode)
		srv := server.New(cfg.Server.StatusAddr, orc, log)
		go func() {
			defer close(srvDone)
			if err := srv.Start(ctx); err != nil {
				log.Errorf("ステータスサーバーが停止しました: %v", err)
			}
		}()
	} else {
		close(srvDone)
	}

	code := orc.Run(ctx, args)

	stop()
	<-srvDone

	return code
}
