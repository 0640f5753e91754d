// Package server は、キャプチャ中のワーカーの状態を返すHTTPサーバーを管理します。
//
// 責務:
//   - HTTPサーバーの起動と管理
//   - ワーカーの状態をJSONで返す
//
// 仕様:
//   - ルーティングはginを使用
//   - 読み取り専用。キャプチャの開始や停止は受け付けない
//   - グレースフルシャットダウンに対応（5秒でタイムアウト）
package server
