package database

import (
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/jmoiron/sqlx"
)

// setupSQLiteURL は一時ディレクトリにテスト用SQLiteのURLを用意する。
func setupSQLiteURL(t *testing.T) string {
	t.Helper()
	return "sqlite://" + filepath.Join(t.TempDir(), "migrate.db")
}

func openForAssert(t *testing.T, dbURL string) *sqlx.DB {
	t.Helper()
	db, err := Open(dbURL)
	if err != nil {
		t.Fatalf("データベースへの接続に失敗: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func sqliteTableExists(t *testing.T, db *sqlx.DB, table string) bool {
	t.Helper()
	var name string
	err := db.QueryRow("SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?", table).Scan(&name)
	if err == sql.ErrNoRows {
		return false
	}
	if err != nil {
		t.Fatalf("テーブル存在確認クエリに失敗: %v", err)
	}
	return true
}

func TestRunMigrations_SQLite_Up(t *testing.T) {
	dbURL := setupSQLiteURL(t)

	if err := RunMigrations(dbURL); err != nil {
		t.Fatalf("マイグレーション実行に失敗: %v", err)
	}

	db := openForAssert(t, dbURL)
	if !sqliteTableExists(t, db, "favorites") {
		t.Error("テーブル \"favorites\" が存在しません")
	}

	expectedColumns := []string{
		"name", "birth_year", "height_cm", "height_inches", "character_url",
		"species_name", "species_language", "planet_name", "planet_population",
		"films", "created_at", "updated_at",
	}

	rows, err := db.Query("SELECT name FROM pragma_table_info('favorites')")
	if err != nil {
		t.Fatalf("カラム取得に失敗: %v", err)
	}
	defer rows.Close()

	got := map[string]bool{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			t.Fatalf("カラム名のスキャンに失敗: %v", err)
		}
		got[name] = true
	}
	for _, col := range expectedColumns {
		if !got[col] {
			t.Errorf("カラム %q が存在しません", col)
		}
	}
}

func TestRunMigrations_SQLite_Idempotent(t *testing.T) {
	dbURL := setupSQLiteURL(t)

	if err := RunMigrations(dbURL); err != nil {
		t.Fatalf("1回目のマイグレーション実行に失敗: %v", err)
	}
	if err := RunMigrations(dbURL); err != nil {
		t.Fatalf("2回目のマイグレーション実行に失敗（冪等性の問題）: %v", err)
	}
}

func TestMigrations_SQLite_UpAndDown(t *testing.T) {
	dbURL := setupSQLiteURL(t)

	m, err := NewMigrator(dbURL)
	if err != nil {
		t.Fatalf("Migrator生成に失敗: %v", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil {
		t.Fatalf("Up マイグレーション実行に失敗: %v", err)
	}
	if err := m.Down(); err != nil {
		t.Fatalf("Down マイグレーション実行に失敗: %v", err)
	}

	db := openForAssert(t, dbURL)
	if sqliteTableExists(t, db, "favorites") {
		t.Error("Down後もテーブル \"favorites\" が残っています")
	}
}

func TestNewMigrator_UnsupportedScheme(t *testing.T) {
	if _, err := NewMigrator("mysql://localhost/theforce"); err == nil {
		t.Fatal("expected error for unsupported scheme")
	}
}

// TestRunMigrations_Postgres はTEST_DATABASE_URLが設定されている場合のみ実行する。
func TestRunMigrations_Postgres(t *testing.T) {
	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL が未設定のためスキップ")
	}

	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		t.Fatalf("データベースへの接続に失敗: %v", err)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		t.Skipf("テスト用データベースに接続できません（スキップ）: %v", err)
	}

	if _, err := db.Exec(`DROP TABLE IF EXISTS favorites CASCADE; DROP TABLE IF EXISTS schema_migrations CASCADE;`); err != nil {
		t.Fatalf("クリーンアップに失敗: %v", err)
	}

	if err := RunMigrations(dbURL); err != nil {
		t.Fatalf("マイグレーション実行に失敗: %v", err)
	}

	var exists bool
	err = db.QueryRow(
		"SELECT EXISTS (SELECT FROM information_schema.tables WHERE table_schema = 'public' AND table_name = $1)",
		"favorites",
	).Scan(&exists)
	if err != nil {
		t.Fatalf("テーブル存在確認クエリに失敗: %v", err)
	}
	if !exists {
		t.Error("テーブル \"favorites\" が存在しません")
	}
}
