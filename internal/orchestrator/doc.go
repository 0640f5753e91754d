// Package orchestrator はコマンドライン引数からワーカーを組み立てて実行する
//
// # 責務
// - 引数をカメラのシリアル番号として解釈する
// - モードに応じてワーカーを起動し、全ワーカーの終了を待つ
// - 終了コードを決める
//
// # 使い分け
//   - threaded: カメラごとに1ゴルーチン。1台の失敗は他のカメラに影響しない
//   - sequential: 1ゴルーチンで全カメラを巡回する。1台でも準備に失敗したら中止する
//
// # 仕様
//   - 数値として読めない引数は黙って捨てる。"12ab" は 12 として扱う
//   - 同じシリアル番号は最初の1つだけを使う
//   - シリアル番号が1つもない場合は使い方を表示し、デバイスに一切触れずに -1 を返す
package orchestrator
