package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/theforce/internal/model"
)

// PostgresFavoriteRepo はPostgreSQLを使用したお気に入りリポジトリ。
// 複数インスタンスでお気に入りを共有する構成で使う。
type PostgresFavoriteRepo struct {
	db  *sql.DB
	now func() time.Time
}

// NewPostgresFavoriteRepo はPostgresFavoriteRepoを生成する。
func NewPostgresFavoriteRepo(db *sql.DB) *PostgresFavoriteRepo {
	return &PostgresFavoriteRepo{db: db, now: time.Now}
}

func scanFavorite(scan func(dest ...any) error) (*model.Favorite, error) {
	var row favoriteRow
	err := scan(
		&row.Name, &row.BirthYear, &row.HeightCm, &row.HeightInches, &row.CharacterURL,
		&row.SpeciesName, &row.SpeciesLanguage, &row.PlanetName, &row.PlanetPopulation,
		&row.Films, &row.CreatedAt, &row.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return row.toModel()
}

// GetByName は指定名のお気に入りを取得する。見つからない場合はnilを返す。
func (r *PostgresFavoriteRepo) GetByName(ctx context.Context, name string) (*model.Favorite, error) {
	fav, err := scanFavorite(r.db.QueryRowContext(ctx,
		`SELECT `+favoriteColumns+` FROM favorites WHERE name = $1`, name,
	).Scan)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("お気に入りの取得に失敗しました: %w", err)
	}
	return fav, nil
}

// GetAll は全てのお気に入りを登録順に取得する。
func (r *PostgresFavoriteRepo) GetAll(ctx context.Context) ([]model.Favorite, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+favoriteColumns+` FROM favorites ORDER BY created_at ASC, name ASC`)
	if err != nil {
		return nil, fmt.Errorf("お気に入り一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	favorites := []model.Favorite{}
	for rows.Next() {
		fav, err := scanFavorite(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("お気に入りのスキャンに失敗しました: %w", err)
		}
		favorites = append(favorites, *fav)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("お気に入り一覧の取得に失敗しました: %w", err)
	}
	return favorites, nil
}

// InsertOrReplace はお気に入りを登録する。同名のレコードがあればcreated_atを残して置き換える。
func (r *PostgresFavoriteRepo) InsertOrReplace(ctx context.Context, fav *model.Favorite) error {
	row, err := newFavoriteRow(fav, r.now())
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO favorites (`+favoriteColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10::jsonb, $11, $12)
		 ON CONFLICT (name) DO UPDATE SET
		     birth_year = EXCLUDED.birth_year,
		     height_cm = EXCLUDED.height_cm,
		     height_inches = EXCLUDED.height_inches,
		     character_url = EXCLUDED.character_url,
		     species_name = EXCLUDED.species_name,
		     species_language = EXCLUDED.species_language,
		     planet_name = EXCLUDED.planet_name,
		     planet_population = EXCLUDED.planet_population,
		     films = EXCLUDED.films,
		     updated_at = EXCLUDED.updated_at`,
		row.Name, row.BirthYear, row.HeightCm, row.HeightInches, row.CharacterURL,
		row.SpeciesName, row.SpeciesLanguage, row.PlanetName, row.PlanetPopulation,
		string(row.Films), row.CreatedAt, row.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("お気に入りの保存に失敗しました: %w", err)
	}
	return nil
}

// DeleteByName は指定名のお気に入りを削除する。
func (r *PostgresFavoriteRepo) DeleteByName(ctx context.Context, name string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM favorites WHERE name = $1`, name); err != nil {
		return fmt.Errorf("お気に入りの削除に失敗しました: %w", err)
	}
	return nil
}

// DeleteAll は全てのお気に入りを削除する。
func (r *PostgresFavoriteRepo) DeleteAll(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM favorites`); err != nil {
		return fmt.Errorf("お気に入りの全削除に失敗しました: %w", err)
	}
	return nil
}

var _ FavoriteRepository = (*PostgresFavoriteRepo)(nil)
