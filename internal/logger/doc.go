// Package logger は経過時間付きのテキストログを出力する
//
// # 責務
// - プロセス開始からの経過ミリ秒を付けたログ行の出力
// - デバイスエラーの整形
//
// # 仕様
//   - 1行の形式: [<経過ms>] [INFO] <本文> / [<経過ms>] [ERROR] <本文>
//   - デバイスエラー: [<経過ms>] [ERROR] device: <説明>
//   - レベルによるフィルタリング、バッファリング、ローテーションは行わない
//   - 標準ライブラリのlog.Loggerを使用し、1行単位の書き込みは内部で直列化される
package logger
