package camera

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"

	"gigecap/internal/config"
	"gigecap/internal/logger"
)

// Open はシリアル番号のカメラを検出して接続する
// 失敗した場合はデバイスエラーをログに出し、nilハンドルを返す。リトライはしない
func Open(ctx context.Context, bus Bus, serial Serial, log logger.Logger) (Handle, error) {
	guid, err := bus.LookupSerial(ctx, serial)
	if err != nil {
		err = NewDeviceError("lookup", serial, err)
		log.DeviceError(err)
		log.Errorf("シリアル番号 %d のカメラを取得できません", serial)
		return nil, err
	}
	log.Infof("カメラを取得しました (serial %d)", serial)

	handle, err := bus.Connect(ctx, guid)
	if err != nil {
		err = NewDeviceError("connect", serial, err)
		log.DeviceError(err)
		log.Errorf("シリアル番号 %d のカメラに接続できません", serial)
		return nil, err
	}
	log.Infof("カメラに接続しました (serial %d)", serial)

	return handle, nil
}

// NewBus は設定に応じたバックエンドのBusを作成する
func NewBus(cfg config.CameraConfig) (Bus, error) {
	switch cfg.Backend {
	case config.BackendSim:
		return NewSimBus(cfg.Sim), nil
	case config.BackendFFmpeg:
		return NewFFmpegBus(cfg.Devices), nil
	case config.BackendV4L2:
		return NewV4L2Bus(cfg.Devices, cfg.FrameTimeout)
	default:
		return nil, fmt.Errorf("未知のバックエンド: %s", cfg.Backend)
	}
}

var videoDevicePattern = regexp.MustCompile(`^/dev/video(\d+)$`)

// scanVideoDevices は /dev/video* をデバイス番号順に列挙する
func scanVideoDevices() ([]string, error) {
	matches, err := filepath.Glob("/dev/video*")
	if err != nil {
		return nil, fmt.Errorf("デバイスのスキャンに失敗: %w", err)
	}

	devices := matches[:0]
	for _, m := range matches {
		if videoDevicePattern.MatchString(m) {
			devices = append(devices, m)
		}
	}

	// デバイス番号でソート
	sort.Slice(devices, func(i, j int) bool {
		return extractDeviceNumber(devices[i]) < extractDeviceNumber(devices[j])
	})

	return devices, nil
}

// extractDeviceNumber はデバイスパスから番号を抽出する
func extractDeviceNumber(device string) int {
	m := videoDevicePattern.FindStringSubmatch(device)
	if m == nil {
		return -1
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return -1
	}
	return n
}
