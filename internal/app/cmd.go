package app

import "strings"

// Command はtheforceバイナリのサブコマンドを表す。
// APIサーバー・マイグレーション・ヘルスチェックは同じバイナリで切り替える。
type Command string

const (
	// CommandServe はAPIサーバーを起動する。SQLiteの場合は起動時にマイグレーションも行う。
	CommandServe Command = "serve"
	// CommandMigrate はお気に入りテーブルのマイグレーションだけを実行して終了する。
	// Postgresではサーバー起動前にこれを実行する。
	CommandMigrate Command = "migrate"
	// CommandHealthcheck は起動中のサーバーの/healthを叩いて終了する。
	// distrolessイメージにはcurlがないため、DockerのHEALTHCHECKから使う。
	CommandHealthcheck Command = "healthcheck"
)

// ParseCommand は先頭の引数からサブコマンドを解析する。大文字小文字と前後の空白は無視する。
// 引数が空またはサポート外のコマンドの場合はCommandServeを返す。
func ParseCommand(args []string) Command {
	if len(args) == 0 {
		return CommandServe
	}

	switch Command(strings.ToLower(strings.TrimSpace(args[0]))) {
	case CommandMigrate:
		return CommandMigrate
	case CommandHealthcheck:
		return CommandHealthcheck
	default:
		return CommandServe
	}
}
