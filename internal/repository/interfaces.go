// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"

	"github.com/hitoshi/theforce/internal/model"
)

// FavoriteRepository はお気に入りスナップショットの永続化インターフェース。
// キーはキャラクター名で、1キーにつき最大1件を保持する。
type FavoriteRepository interface {
	// GetByName は指定名のお気に入りを取得する。見つからない場合はnilを返す。
	GetByName(ctx context.Context, name string) (*model.Favorite, error)

	// GetAll は全てのお気に入りを登録順に取得する。
	GetAll(ctx context.Context) ([]model.Favorite, error)

	// InsertOrReplace はお気に入りを登録する。同名のレコードがあれば置き換える。
	// 置き換え時もcreated_atは維持する。
	InsertOrReplace(ctx context.Context, fav *model.Favorite) error

	// DeleteByName は指定名のお気に入りを削除する。存在しない場合もエラーにしない。
	DeleteByName(ctx context.Context, name string) error

	// DeleteAll は全てのお気に入りを削除する。
	DeleteAll(ctx context.Context) error
}
