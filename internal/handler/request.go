package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/theforce/internal/model"
)

// maxRequestBody はリクエストボディの上限。
const maxRequestBody = 1 << 20

type characterRequest struct {
	Name         string `json:"name"`
	BirthYear    string `json:"birth_year"`
	HeightCm     string `json:"height_cm"`
	HeightInches string `json:"height_inches"`
	URL          string `json:"url"`
}

type speciesRequest struct {
	Name     string `json:"name"`
	Language string `json:"language"`
}

type filmRequest struct {
	Title        string `json:"title"`
	OpeningCrawl string `json:"opening_crawl"`
}

type planetRequest struct {
	Name       string `json:"name"`
	Population int64  `json:"population"`
}

// favoriteRequest はお気に入りスナップショットの入力。
type favoriteRequest struct {
	Character characterRequest `json:"character"`
	Species   speciesRequest   `json:"species"`
	Planet    planetRequest    `json:"planet"`
	Films     []filmRequest    `json:"films"`
}

// createSessionRequest は詳細セッション作成の入力。favoriteがあればcharacterより優先される。
type createSessionRequest struct {
	Character *characterRequest `json:"character"`
	Favorite  *favoriteRequest  `json:"favorite"`
}

type connectivityRequest struct {
	Connected *bool `json:"connected"`
}

func (c characterRequest) toModel() model.Character {
	return model.Character{
		Name:         strings.TrimSpace(c.Name),
		BirthYear:    c.BirthYear,
		HeightCm:     c.HeightCm,
		HeightInches: c.HeightInches,
		URL:          strings.TrimSpace(c.URL),
	}
}

func (f favoriteRequest) toModel() *model.Favorite {
	films := make([]model.Film, len(f.Films))
	for i, film := range f.Films {
		films[i] = model.Film{Title: film.Title, OpeningCrawl: film.OpeningCrawl}
	}
	return &model.Favorite{
		Character: f.Character.toModel(),
		Species:   model.Species{Name: f.Species.Name, Language: f.Species.Language},
		Planet:    model.Planet{Name: f.Planet.Name, Population: f.Planet.Population},
		Films:     films,
	}
}

// decodeJSON はリクエストボディをデコードする。allowEmptyがtrueの場合、空ボディはエラーにしない。
func decodeJSON(w http.ResponseWriter, r *http.Request, v any, allowEmpty bool) bool {
	body := http.MaxBytesReader(w, r.Body, maxRequestBody)
	err := json.NewDecoder(body).Decode(v)
	if err == nil || (allowEmpty && errors.Is(err, io.EOF)) {
		return true
	}
	writeInvalidRequest(w, "リクエストボディの解析に失敗しました。")
	return false
}

// pageParam はpageクエリを読み取る。未指定は1。
func pageParam(r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("page")
	if raw == "" {
		return 1, true
	}
	page, err := strconv.Atoi(raw)
	if err != nil || page < 1 {
		return 0, false
	}
	return page, true
}

// nameParam はパス中のキャラクター名を取り出す。"/"を含む名前はエスケープされたまま届くため戻す。
func nameParam(r *http.Request) string {
	raw := chi.URLParam(r, "name")
	if name, err := url.PathUnescape(raw); err == nil {
		return name
	}
	return raw
}
