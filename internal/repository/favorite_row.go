package repository

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hitoshi/theforce/internal/model"
)

// favoriteRow はfavoritesテーブルの1行。
type favoriteRow struct {
	Name             string    `db:"name"`
	BirthYear        string    `db:"birth_year"`
	HeightCm         string    `db:"height_cm"`
	HeightInches     string    `db:"height_inches"`
	CharacterURL     string    `db:"character_url"`
	SpeciesName      string    `db:"species_name"`
	SpeciesLanguage  string    `db:"species_language"`
	PlanetName       string    `db:"planet_name"`
	PlanetPopulation int64     `db:"planet_population"`
	Films            []byte    `db:"films"`
	CreatedAt        time.Time `db:"created_at"`
	UpdatedAt        time.Time `db:"updated_at"`
}

// filmJSON はfilms列に格納する映画1件のJSON表現。
type filmJSON struct {
	Title        string `json:"title"`
	OpeningCrawl string `json:"opening_crawl"`
}

func newFavoriteRow(fav *model.Favorite, now time.Time) (*favoriteRow, error) {
	films := make([]filmJSON, len(fav.Films))
	for i, f := range fav.Films {
		films[i] = filmJSON{Title: f.Title, OpeningCrawl: f.OpeningCrawl}
	}
	encoded, err := json.Marshal(films)
	if err != nil {
		return nil, fmt.Errorf("映画一覧のエンコードに失敗しました: %w", err)
	}

	createdAt := fav.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}

	return &favoriteRow{
		Name:             fav.Character.Name,
		BirthYear:        fav.Character.BirthYear,
		HeightCm:         fav.Character.HeightCm,
		HeightInches:     fav.Character.HeightInches,
		CharacterURL:     fav.Character.URL,
		SpeciesName:      fav.Species.Name,
		SpeciesLanguage:  fav.Species.Language,
		PlanetName:       fav.Planet.Name,
		PlanetPopulation: fav.Planet.Population,
		Films:            encoded,
		CreatedAt:        createdAt.UTC(),
		UpdatedAt:        now.UTC(),
	}, nil
}

func (r *favoriteRow) toModel() (*model.Favorite, error) {
	var films []filmJSON
	if len(r.Films) > 0 {
		if err := json.Unmarshal(r.Films, &films); err != nil {
			return nil, fmt.Errorf("映画一覧のデコードに失敗しました: %w", err)
		}
	}

	fav := &model.Favorite{
		Character: model.Character{
			Name:         r.Name,
			BirthYear:    r.BirthYear,
			HeightCm:     r.HeightCm,
			HeightInches: r.HeightInches,
			URL:          r.CharacterURL,
		},
		Species: model.Species{
			Name:     r.SpeciesName,
			Language: r.SpeciesLanguage,
		},
		Planet: model.Planet{
			Name:       r.PlanetName,
			Population: r.PlanetPopulation,
		},
		Films:     make([]model.Film, len(films)),
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
	for i, f := range films {
		fav.Films[i] = model.Film{Title: f.Title, OpeningCrawl: f.OpeningCrawl}
	}
	return fav, nil
}
