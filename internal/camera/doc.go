// Package camera マシンビジョンカメラへのデバイスアクセスを担う
//
// # 責務
// - シリアル番号からのカメラ検出と接続
// - キャプチャの開始・停止とフレームの取得
// - デバイス呼び出しのロック粒度の制御
//
// # 使い分け
// このパッケージは以下の場合に使用する：
// - シリアル番号で指定したカメラからフレームを取得したい
// - 実機なしでキャプチャループを動かしたい（SimBus / MockBus）
//
// # 仕様
//   - Bus: カメラの列挙・シリアル番号の解決・接続
//   - Handle: 接続済みのカメラ1台。所有者は1つのワーカーのみ
//   - Frame: 次のRetrieveBufferまで有効な1枚の画像
//   - バックエンド: sim（合成画像）、ffmpeg（ストリームURL）、v4l2（/dev/video*）
//   - DeviceGuard: none / per_handle / global のロック粒度
//
// # 前提要件
//   - ffmpeg: ffmpegバックエンドで使用
//     Ubuntu/Debian: sudo apt install ffmpeg
//   - videoグループへの参加: v4l2バックエンドのデバイスアクセス権限
//     sudo usermod -a -G video $USER
package camera
