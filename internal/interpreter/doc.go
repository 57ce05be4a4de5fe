// Package interpreter は翻訳・音声認識・音声合成を中継するHTTPゲートウェイの内部実装を提供する。
//
// ブラウザのクライアントから受け取ったテキストや録音を、設定されたプロバイダ
// （Google Cloud または OpenAI）に委譲し、結果をJSONまたは音声データで返す。
// 合成した音声はアーティファクトとして一意なIDで保存され、
// <audio> 要素から /get-audio/:id で直接参照される。
package interpreter
