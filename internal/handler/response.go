package handler

import (
	"time"

	"github.com/dustin/go-humanize"

	"github.com/hitoshi/theforce/internal/middleware"
	"github.com/hitoshi/theforce/internal/model"
)

// characterResponse はキャラクターのAPIレスポンス。
type characterResponse struct {
	Name         string `json:"name"`
	BirthYear    string `json:"birth_year"`
	HeightCm     string `json:"height_cm"`
	HeightInches string `json:"height_inches"`
	URL          string `json:"url"`
}

type speciesResponse struct {
	Name     string `json:"name"`
	Language string `json:"language"`
}

type filmResponse struct {
	Title        string `json:"title"`
	OpeningCrawl string `json:"opening_crawl"`
}

// planetResponse は惑星のAPIレスポンス。population_displayは桁区切りの表示用文字列。
type planetResponse struct {
	Name              string `json:"name"`
	Population        int64  `json:"population"`
	PopulationDisplay string `json:"population_display"`
}

// favoriteResponse はお気に入りスナップショットのAPIレスポンス。
type favoriteResponse struct {
	Character characterResponse `json:"character"`
	Species   speciesResponse   `json:"species"`
	Planet    planetResponse    `json:"planet"`
	Films     []filmResponse    `json:"films"`
	CreatedAt *time.Time        `json:"created_at,omitempty"`
	UpdatedAt *time.Time        `json:"updated_at,omitempty"`
}

// sectionResponse はセクションごとの読み込み状態。
type sectionResponse struct {
	Status string                        `json:"status"`
	Error  *middleware.ErrorResponseBody `json:"error,omitempty"`
}

// detailResponse は詳細画面状態のAPIレスポンス。
// species/films/planetがnullの場合は未解決、空配列は解決済みで0件を表す。
type detailResponse struct {
	Phase      string                        `json:"phase"`
	IsComplete bool                          `json:"is_complete"`
	Resolved   int                           `json:"resolved"`
	Species    []speciesResponse             `json:"species"`
	Films      []filmResponse                `json:"films"`
	Planet     *planetResponse               `json:"planet"`
	Sections   map[string]sectionResponse    `json:"sections"`
	Error      *middleware.ErrorResponseBody `json:"error,omitempty"`
}

// favoriteStateResponse はお気に入りトグルの表示状態。
type favoriteStateResponse struct {
	IsFavorite bool                          `json:"is_favorite"`
	Error      *middleware.ErrorResponseBody `json:"error,omitempty"`
}

// eventResponse はNDJSONで配信するセッションイベント1行分。
type eventResponse struct {
	Type     string                 `json:"type"`
	Detail   *detailResponse        `json:"detail,omitempty"`
	Favorite *favoriteStateResponse `json:"favorite,omitempty"`
}

// pageResponse は一覧APIの1ページ分。
type pageResponse[T any] struct {
	Count   int  `json:"count"`
	Page    int  `json:"page"`
	HasNext bool `json:"has_next"`
	Results []T  `json:"results"`
}

func toCharacterResponse(c model.Character) characterResponse {
	return characterResponse{
		Name:         c.Name,
		BirthYear:    c.BirthYear,
		HeightCm:     c.HeightCm,
		HeightInches: c.HeightInches,
		URL:          c.URL,
	}
}

func toSpeciesResponses(in []model.Species) []speciesResponse {
	if in == nil {
		return nil
	}
	out := make([]speciesResponse, len(in))
	for i, sp := range in {
		out[i] = speciesResponse{Name: sp.Name, Language: sp.Language}
	}
	return out
}

func toFilmResponses(in []model.Film) []filmResponse {
	if in == nil {
		return nil
	}
	out := make([]filmResponse, len(in))
	for i, f := range in {
		out[i] = filmResponse{Title: f.Title, OpeningCrawl: f.OpeningCrawl}
	}
	return out
}

func toPlanetResponse(p model.Planet) planetResponse {
	return planetResponse{
		Name:              p.Name,
		Population:        p.Population,
		PopulationDisplay: populationDisplay(p.Population),
	}
}

// populationDisplay は人口を桁区切りで表示する。0はデータなしとして扱う。
func populationDisplay(population int64) string {
	if population <= 0 {
		return model.UnknownValue
	}
	return humanize.Comma(population)
}

func toFavoriteResponse(f *model.Favorite) favoriteResponse {
	films := toFilmResponses(f.Films)
	if films == nil {
		films = []filmResponse{}
	}
	resp := favoriteResponse{
		Character: toCharacterResponse(f.Character),
		Species:   speciesResponse{Name: f.Species.Name, Language: f.Species.Language},
		Planet:    toPlanetResponse(f.Planet),
		Films:     films,
	}
	if !f.CreatedAt.IsZero() {
		t := f.CreatedAt
		resp.CreatedAt = &t
	}
	if !f.UpdatedAt.IsZero() {
		t := f.UpdatedAt
		resp.UpdatedAt = &t
	}
	return resp
}

func toDetailResponse(s model.DetailViewState) detailResponse {
	resp := detailResponse{
		Phase:      string(s.Phase),
		IsComplete: s.IsComplete,
		Resolved:   s.Resolved(),
		Species:    toSpeciesResponses(s.Species),
		Films:      toFilmResponses(s.Films),
		Sections:   make(map[string]sectionResponse, 3),
		Error:      errorBody(s.Error),
	}
	if s.Planet != nil {
		p := toPlanetResponse(*s.Planet)
		resp.Planet = &p
	}
	for _, sec := range model.AllSections() {
		st := s.Section(sec)
		sr := sectionResponse{Status: string(st.Status)}
		if st.Err != nil {
			sr.Error = errorBody(st.Err)
		}
		resp.Sections[string(sec)] = sr
	}
	return resp
}

func toFavoriteStateResponse(s model.FavoriteViewState) favoriteStateResponse {
	return favoriteStateResponse{IsFavorite: s.IsFavorite, Error: errorBody(s.Error)}
}

// errorBody はドメインエラーを統一エラーフォーマットに変換する。nilはnilを返す。
func errorBody(err error) *middleware.ErrorResponseBody {
	if err == nil {
		return nil
	}
	_, apiErr := classifyError(err)
	return middleware.NewErrorResponseBody(apiErr)
}
