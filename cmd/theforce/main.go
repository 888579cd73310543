package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/hitoshi/theforce/internal/app"
)

func main() {
	// ローカル開発用の.envがあれば読み込む。既に設定済みの環境変数は上書きしない
	_ = godotenv.Load()

	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "theforce: %v\n", err)
		os.Exit(1)
	}
}
