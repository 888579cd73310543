package database

import (
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Dialect はローカルストアのバックエンド種別。
type Dialect string

const (
	// DialectSQLite は組み込みSQLite（modernc.org/sqlite）。既定のバックエンド。
	DialectSQLite Dialect = "sqlite"
	// DialectPostgres はPostgreSQL（lib/pq）。複数インスタンスでお気に入りを共有する場合に使う。
	DialectPostgres Dialect = "postgres"
)

// sqlitePragmas は接続ごとに適用するSQLiteのPRAGMA。
const sqlitePragmas = "_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_time_format=sqlite"

// DialectOf はデータベースURLのスキームからバックエンド種別を判定する。
func DialectOf(databaseURL string) (Dialect, error) {
	switch {
	case strings.HasPrefix(databaseURL, "sqlite://"):
		return DialectSQLite, nil
	case strings.HasPrefix(databaseURL, "postgres://"), strings.HasPrefix(databaseURL, "postgresql://"):
		return DialectPostgres, nil
	default:
		return "", fmt.Errorf("unsupported database URL scheme: %q", databaseURL)
	}
}

// SQLitePath は "sqlite://" URLからファイルパスを取り出す。クエリ部は捨てる。
func SQLitePath(databaseURL string) string {
	path := strings.TrimPrefix(databaseURL, "sqlite://")
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	return path
}

// Open はデータベースURLに応じたドライバで接続を開く。
//
// SQLiteの場合は接続確認まで行い、単一ライターとなるよう接続数を1に制限する。
// PostgreSQLの場合はsql.Openと同様に接続を試行しないため、接続確認にはdb.Ping()を使用すること。
func Open(databaseURL string) (*sqlx.DB, error) {
	dialect, err := DialectOf(databaseURL)
	if err != nil {
		return nil, err
	}

	switch dialect {
	case DialectSQLite:
		path := SQLitePath(databaseURL)
		if path == "" {
			return nil, fmt.Errorf("empty sqlite path in database URL")
		}
		db, err := sqlx.Connect("sqlite", path+"?"+sqlitePragmas)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		db.SetMaxOpenConns(1)
		return db, nil

	default:
		db, err := sqlx.Open("postgres", databaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		return db, nil
	}
}
