// Package httpclient は外部クラウドAPIを呼び出すための送信用HTTPクライアントを提供する。
//
// タイムアウトと通信ログを備えたクライアントを生成し、Google APIについては
// Application Default Credentials によるOAuth2認証を付与する。
// 翻訳・音声認識・音声合成の各プロバイダはこのクライアント経由で通信する。
package httpclient
