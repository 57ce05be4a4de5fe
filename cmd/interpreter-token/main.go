// 通訳ゲートウェイ用のJWTを発行するコマンド。
// JWT_SECRET を設定したゲートウェイに接続するクライアントへ配布するトークンを標準出力に書き出す。
//
//	interpreter-token -client web -ttl 720h
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/nao1215/interpreter/pkg/middleware"
)

func main() {
	client := flag.String("client", "web", "トークンを発行するクライアント名（subject）")
	ttl := flag.Duration("ttl", 30*24*time.Hour, "有効期間。0の場合は無期限")
	flag.Parse()

	_ = godotenv.Load()

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		log.Fatal("JWT_SECRET が設定されていません")
	}

	token, err := middleware.GenerateToken(secret, *client, *ttl)
	if err != nil {
		log.Fatalf("トークンの発行に失敗: %v", err)
	}
	fmt.Println(token)
}
