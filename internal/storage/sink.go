// Package storage は取得したフレームを画像ファイルとして保存する
package storage

import (
	"bufio"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
)

// Extension は保存する画像の拡張子
const Extension = "png"

// Sink はフレームの保存先
type Sink interface {
	// Save はフレームを連番付きで保存し、保存したファイル名を返す
	Save(serial uint32, seq int, img image.Image) (string, error)
}

// FileName はカメラのシリアル番号と連番からファイル名を生成する
// 例: cam1234_frame_00042.png
func FileName(serial uint32, seq int) string {
	return fmt.Sprintf("cam%d_frame_%05d.%s", serial, seq, Extension)
}

// FileSink はディレクトリにPNGファイルを書き出すSink
// 同名ファイルは上書きする
type FileSink struct {
	dir     string
	encoder png.Encoder
}

// NewFileSink は新しいFileSinkを作成する
// dirが存在しなければ作成する
func NewFileSink(dir string) (*FileSink, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("出力ディレクトリの作成に失敗: %w", err)
	}
	return &FileSink{
		dir:     dir,
		encoder: png.Encoder{CompressionLevel: png.BestSpeed},
	}, nil
}

// Dir は出力先ディレクトリを返す
func (s *FileSink) Dir() string {
	return s.dir
}

// Save はフレームをPNGで保存する
func (s *FileSink) Save(serial uint32, seq int, img image.Image) (string, error) {
	name := FileName(serial, seq)
	path := filepath.Join(s.dir, name)

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("ファイルの作成に失敗: %w", err)
	}

	w := bufio.NewWriter(f)
	if err := s.encoder.Encode(w, img); err != nil {
		_ = f.Close()
		return "", fmt.Errorf("PNGのエンコードに失敗 (%s): %w", name, err)
	}
	if err := w.Flush(); err != nil {
		_ = f.Close()
		return "", fmt.Errorf("ファイルの書き込みに失敗 (%s): %w", name, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("ファイルのクローズに失敗 (%s): %w", name, err)
	}

	return name, nil
}
