package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"gigecap/internal/capture"
)

// StatusProvider はワーカーの状態を提供する
type StatusProvider interface {
	Mode() string
	StartedAt() time.Time
	Snapshots() []capture.Snapshot
	Snapshot(serial uint32) (capture.Snapshot, bool)
}

// HealthResponse はヘルスチェックのレスポンス
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// StatusResponse はシステム状態のレスポンス
type StatusResponse struct {
	Status    string    `json:"status"`
	Mode      string    `json:"mode"`
	Uptime    string    `json:"uptime"`
	Cameras   int       `json:"cameras"`
	Capturing int       `json:"capturing"`
	Failed    int       `json:"failed"`
	Timestamp time.Time `json:"timestamp"`
}

// CamerasResponse はカメラ一覧のレスポンス
type CamerasResponse struct {
	Cameras []capture.Snapshot `json:"cameras"`
}

// ErrorResponse はエラーレスポンス
type ErrorResponse struct {
	Error     string    `json:"error"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// StatusHandler はステータスAPIのハンドラ
type StatusHandler struct {
	status StatusProvider
}

// HealthCheck はヘルスチェックエンドポイントの実装
func (h *StatusHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now(),
	})
}

// GetStatus はシステム状態取得エンドポイントの実装
func (h *StatusHandler) GetStatus(c *gin.Context) {
	snapshots := h.status.Snapshots()

	response := StatusResponse{
		Status:    "running",
		Mode:      h.status.Mode(),
		Uptime:    time.Since(h.status.StartedAt()).Truncate(time.Second).String(),
		Cameras:   len(snapshots),
		Timestamp: time.Now(),
	}
	for _, s := range snapshots {
		switch s.State {
		case capture.StateCapturing:
			response.Capturing++
		case capture.StateFailed:
			response.Failed++
		}
	}

	c.JSON(http.StatusOK, response)
}

// GetCameras はカメラ一覧取得エンドポイントの実装
func (h *StatusHandler) GetCameras(c *gin.Context) {
	c.JSON(http.StatusOK, CamerasResponse{
		Cameras: h.status.Snapshots(),
	})
}

// GetCamera はカメラ1台の状態取得エンドポイントの実装
func (h *StatusHandler) GetCamera(c *gin.Context) {
	serial, err := strconv.ParseUint(c.Param("serial"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:     "invalid_serial",
			Message:   "シリアル番号が不正です",
			Timestamp: time.Now(),
		})
		return
	}

	snapshot, found := h.status.Snapshot(uint32(serial))
	if !found {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error:     "camera_not_found",
			Message:   "指定されたカメラが見つかりません",
			Timestamp: time.Now(),
		})
		return
	}

	c.JSON(http.StatusOK, snapshot)
}
