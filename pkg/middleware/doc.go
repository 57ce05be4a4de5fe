// Package middleware はGinベースのHTTP APIで使用する共通ミドルウェアを提供する。
//
// CORS設定、パニックリカバリ、構造化リクエストログ、
// 任意で有効化するJWT認証を含む。
package middleware
