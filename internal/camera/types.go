package camera

import (
	"context"
	"errors"
	"fmt"
	"image"
	"time"
)

// Serial はカメラのシリアル番号
type Serial uint32

// GUID はバス上でカメラを一意に指す識別子
type GUID string

// Frame はカメラから取得した1枚の画像
// 同じHandleで次にRetrieveBufferを呼ぶまでのみ有効
type Frame struct {
	Image     image.Image
	Timestamp time.Time
}

// Bus はカメラの検出と接続を担うインターフェース
type Bus interface {
	// NumCameras はバス上で見えているカメラの台数を返す
	NumCameras(ctx context.Context) (int, error)

	// LookupSerial はシリアル番号からGUIDを取得する
	LookupSerial(ctx context.Context, serial Serial) (GUID, error)

	// Connect はGUIDのカメラに接続する
	Connect(ctx context.Context, guid GUID) (Handle, error)
}

// Handle は接続済みのカメラ1台を表すインターフェース
type Handle interface {
	// Serial はカメラのシリアル番号を返す
	Serial() Serial

	// StartCapture はストリーミングを開始する
	StartCapture(ctx context.Context) error

	// RetrieveBuffer は次のフレームを取得する
	RetrieveBuffer(ctx context.Context) (*Frame, error)

	// StopCapture はストリーミングを停止する
	StopCapture(ctx context.Context) error

	// Disconnect は接続を閉じる
	Disconnect() error
}

var (
	// ErrNotFound はシリアル番号のカメラがバス上にない
	ErrNotFound = errors.New("camera not found")
	// ErrNotStarted はキャプチャ開始前にフレームを要求した
	ErrNotStarted = errors.New("capture not started")
	// ErrClosed は切断済みのハンドルを操作した
	ErrClosed = errors.New("handle closed")
	// ErrUnsupported はこの環境で使えないバックエンド
	ErrUnsupported = errors.New("backend not supported on this platform")
)

// DeviceError はデバイス呼び出しの失敗
type DeviceError struct {
	Op     string
	Serial Serial
	Err    error
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("%s (serial %d): %v", e.Op, e.Serial, e.Err)
}

func (e *DeviceError) Unwrap() error {
	return e.Err
}

// NewDeviceError はデバイス呼び出しの失敗をDeviceErrorで包む
// errがnilならnilを返す
func NewDeviceError(op string, serial Serial, err error) error {
	if err == nil {
		return nil
	}
	return &DeviceError{Op: op, Serial: serial, Err: err}
}
