package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"gigecap/internal/logger"
)

const shutdownTimeout = 5 * time.Second

// Server はHTTPサーバーを管理する構造体
type Server struct {
	addr       string
	log        logger.Logger
	engine     *gin.Engine
	httpServer *http.Server
}

// New は新しいServerインスタンスを作成する
func New(addr string, status StatusProvider, log logger.Logger) *Server {
	if log == nil {
		log = logger.Nop()
	}

	engine := gin.New()
	engine.Use(gin.Recovery())

	h := &StatusHandler{status: status}
	setupRoutes(engine, h)

	return &Server{
		addr:   addr,
		log:    log,
		engine: engine,
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           engine,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
}

// setupRoutes はHTTPルートを設定する
func setupRoutes(r *gin.Engine, h *StatusHandler) {
	// ヘルスチェックエンドポイント
	r.GET("/health", h.HealthCheck)

	// APIエンドポイント
	api := r.Group("/api")
	api.GET("/status", h.GetStatus)
	api.GET("/cameras", h.GetCameras)
	api.GET("/cameras/:serial", h.GetCamera)
}

// Handler はルーティング済みのhttp.Handlerを返す
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start はサーバーを起動し、ctxがキャンセルされるまでブロックする
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("サーバーの起動に失敗: %w", err)
	}
	return s.Serve(ctx, ln)
}

// Serve は指定したリスナーで待ち受ける
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)

	go func() {
		s.log.Infof("ステータスサーバーを起動しています: %s", ln.Addr())
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("サーバーの起動に失敗: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}

	return s.Shutdown()
}

// Shutdown はサーバーをグレースフルにシャットダウンする
func (s *Server) Shutdown() error {
	s.log.Info("ステータスサーバーをシャットダウンしています")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("サーバーのシャットダウンに失敗: %w", err)
	}

	s.log.Info("ステータスサーバーが正常にシャットダウンされました")
	return nil
}
