package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/hitoshi/theforce/internal/model"
)

const favoriteColumns = `name, birth_year, height_cm, height_inches, character_url,
	species_name, species_language, planet_name, planet_population, films,
	created_at, updated_at`

// SQLiteFavoriteRepo は組み込みSQLiteを使用したお気に入りリポジトリ。
type SQLiteFavoriteRepo struct {
	db  *sqlx.DB
	now func() time.Time
}

// NewSQLiteFavoriteRepo はSQLiteFavoriteRepoを生成する。
func NewSQLiteFavoriteRepo(db *sqlx.DB) *SQLiteFavoriteRepo {
	return &SQLiteFavoriteRepo{db: db, now: time.Now}
}

// GetByName は指定名のお気に入りを取得する。見つからない場合はnilを返す。
func (r *SQLiteFavoriteRepo) GetByName(ctx context.Context, name string) (*model.Favorite, error) {
	var row favoriteRow
	err := r.db.GetContext(ctx, &row,
		`SELECT `+favoriteColumns+` FROM favorites WHERE name = ?`, name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("お気に入りの取得に失敗しました: %w", err)
	}
	return row.toModel()
}

// GetAll は全てのお気に入りを登録順に取得する。
func (r *SQLiteFavoriteRepo) GetAll(ctx context.Context) ([]model.Favorite, error) {
	var rows []favoriteRow
	err := r.db.SelectContext(ctx, &rows,
		`SELECT `+favoriteColumns+` FROM favorites ORDER BY created_at ASC, name ASC`)
	if err != nil {
		return nil, fmt.Errorf("お気に入り一覧の取得に失敗しました: %w", err)
	}

	favorites := make([]model.Favorite, 0, len(rows))
	for i := range rows {
		fav, err := rows[i].toModel()
		if err != nil {
			return nil, err
		}
		favorites = append(favorites, *fav)
	}
	return favorites, nil
}

// InsertOrReplace はお気に入りを登録する。同名のレコードがあればcreated_atを残して置き換える。
func (r *SQLiteFavoriteRepo) InsertOrReplace(ctx context.Context, fav *model.Favorite) error {
	row, err := newFavoriteRow(fav, r.now())
	if err != nil {
		return err
	}

	_, err = r.db.NamedExecContext(ctx,
		`INSERT INTO favorites (`+favoriteColumns+`)
		 VALUES (:name, :birth_year, :height_cm, :height_inches, :character_url,
		         :species_name, :species_language, :planet_name, :planet_population, :films,
		         :created_at, :updated_at)
		 ON CONFLICT (name) DO UPDATE SET
		     birth_year = excluded.birth_year,
		     height_cm = excluded.height_cm,
		     height_inches = excluded.height_inches,
		     character_url = excluded.character_url,
		     species_name = excluded.species_name,
		     species_language = excluded.species_language,
		     planet_name = excluded.planet_name,
		     planet_population = excluded.planet_population,
		     films = excluded.films,
		     updated_at = excluded.updated_at`,
		row,
	)
	if err != nil {
		return fmt.Errorf("お気に入りの保存に失敗しました: %w", err)
	}
	return nil
}

// DeleteByName は指定名のお気に入りを削除する。
func (r *SQLiteFavoriteRepo) DeleteByName(ctx context.Context, name string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM favorites WHERE name = ?`, name); err != nil {
		return fmt.Errorf("お気に入りの削除に失敗しました: %w", err)
	}
	return nil
}

// DeleteAll は全てのお気に入りを削除する。
func (r *SQLiteFavoriteRepo) DeleteAll(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM favorites`); err != nil {
		return fmt.Errorf("お気に入りの全削除に失敗しました: %w", err)
	}
	return nil
}

var _ FavoriteRepository = (*SQLiteFavoriteRepo)(nil)
