package repository

import (
	"context"
	"os"
	"testing"

	"github.com/hitoshi/theforce/internal/database"
)

func TestPostgresFavoriteRepo_ImplementsInterface(t *testing.T) {
	var _ FavoriteRepository = (*PostgresFavoriteRepo)(nil)
}

func TestNewPostgresFavoriteRepo_Initializes(t *testing.T) {
	repo := NewPostgresFavoriteRepo(nil)
	if repo == nil {
		t.Fatal("expected non-nil repo")
	}
}

// setupPostgresRepo はTEST_DATABASE_URLが設定されている場合のみDBを用意する。
func setupPostgresRepo(t *testing.T) *PostgresFavoriteRepo {
	t.Helper()

	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL が未設定のためスキップ")
	}

	db, err := database.Open(dbURL)
	if err != nil {
		t.Fatalf("データベースへの接続に失敗: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.Ping(); err != nil {
		t.Skipf("テスト用データベースに接続できません（スキップ）: %v", err)
	}
	if err := database.RunMigrations(dbURL); err != nil {
		t.Fatalf("マイグレーション実行に失敗: %v", err)
	}
	if _, err := db.Exec(`DELETE FROM favorites`); err != nil {
		t.Fatalf("クリーンアップに失敗: %v", err)
	}

	return NewPostgresFavoriteRepo(db.DB)
}

func TestPostgresFavoriteRepo_RoundTripAndDelete(t *testing.T) {
	repo := setupPostgresRepo(t)
	ctx := context.Background()

	want := newTestFavorite("Luke Skywalker")
	if err := repo.InsertOrReplace(ctx, want); err != nil {
		t.Fatalf("InsertOrReplace がエラーを返した: %v", err)
	}
	if err := repo.InsertOrReplace(ctx, want); err != nil {
		t.Fatalf("同名の再保存がエラーを返した: %v", err)
	}

	got, err := repo.GetByName(ctx, "Luke Skywalker")
	if err != nil {
		t.Fatalf("GetByName がエラーを返した: %v", err)
	}
	if got == nil || got.Character != want.Character || len(got.Films) != 2 {
		t.Fatalf("取得結果が不正: %+v", got)
	}

	all, err := repo.GetAll(ctx)
	if err != nil {
		t.Fatalf("GetAll がエラーを返した: %v", err)
	}
	if len(all) != 1 {
		t.Errorf("件数 = %d, want 1", len(all))
	}

	if err := repo.DeleteByName(ctx, "Luke Skywalker"); err != nil {
		t.Fatalf("DeleteByName がエラーを返した: %v", err)
	}
	if err := repo.DeleteByName(ctx, "Luke Skywalker"); err != nil {
		t.Fatalf("存在しないキーの削除がエラーを返した: %v", err)
	}

	got, err = repo.GetByName(ctx, "Luke Skywalker")
	if err != nil {
		t.Fatalf("GetByName がエラーを返した: %v", err)
	}
	if got != nil {
		t.Error("削除後も取得できてしまう")
	}

	if err := repo.InsertOrReplace(ctx, newTestFavorite("Yoda")); err != nil {
		t.Fatalf("保存に失敗: %v", err)
	}
	if err := repo.DeleteAll(ctx); err != nil {
		t.Fatalf("DeleteAll がエラーを返した: %v", err)
	}
	all, err = repo.GetAll(ctx)
	if err != nil {
		t.Fatalf("GetAll がエラーを返した: %v", err)
	}
	if len(all) != 0 {
		t.Errorf("件数 = %d, want 0", len(all))
	}
}
