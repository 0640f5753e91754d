// Package capture はカメラごとのキャプチャループを担う
//
// # 責務
// - 検出 → 接続 → 開始 → 取得・保存のループ → 停止 の状態遷移
// - 取得失敗時のフレームスキップと連番管理
// - 全カメラを1ゴルーチンで巡回する逐次モード
//
// # 仕様
//   - 状態: discovering → connected → capturing → stopped（failedは終端）
//   - 連番はワーカーごとに0から始まり、保存に成功したときだけ進む
//   - 停止はコンテキストのキャンセルで行い、ループの区切りで確認する
//   - デバイス呼び出しはcamera.DeviceGuardで包む
package capture
