package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hitoshi/theforce/internal/model"
	"github.com/hitoshi/theforce/internal/stream"
)

// CharacterServiceInterface はキャラクターハンドラーが必要とするサービスインターフェース。
type CharacterServiceInterface interface {
	// Search は名前でキャラクターを検索する。
	Search(ctx context.Context, query string, page int) (*model.CharacterPage, error)
	// GetCharacterDetails は種族・映画・惑星を並列取得し、状態をストリームで返す。
	GetCharacterDetails(ctx context.Context, characterURL string) *stream.Stream[model.DetailViewState]
}

// CatalogServiceInterface は映画・種族・惑星の一覧を提供する。
type CatalogServiceInterface interface {
	ListFilms(ctx context.Context, query string, page int) (*model.FilmPage, error)
	ListSpecies(ctx context.Context, query string, page int) (*model.SpeciesPage, error)
	ListPlanets(ctx context.Context, query string, page int) (*model.PlanetPage, error)
}

// URLValidator は詳細取得に使う参照URLを検証する。
type URLValidator interface {
	ValidateURL(rawURL string) error
}

// CharacterHandler はキャラクター検索・一覧・詳細のHTTPハンドラー。
type CharacterHandler struct {
	service   CharacterServiceInterface
	catalog   CatalogServiceInterface
	validator URLValidator
	logger    *slog.Logger
}

// NewCharacterHandler はCharacterHandlerを生成する。validatorがnilの場合はURL検証を省略する。
func NewCharacterHandler(service CharacterServiceInterface, catalog CatalogServiceInterface, validator URLValidator, logger *slog.Logger) *CharacterHandler {
	return &CharacterHandler{
		service:   service,
		catalog:   catalog,
		validator: validator,
		logger:    logger,
	}
}

// SearchCharacters はキャラクターを検索する。
// GET /api/characters?search=&page=
func (h *CharacterHandler) SearchCharacters(w http.ResponseWriter, r *http.Request) {
	query, page, ok := listParams(w, r)
	if !ok {
		return
	}

	result, err := h.service.Search(r.Context(), query, page)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	results := make([]characterResponse, len(result.Characters))
	for i, c := range result.Characters {
		results[i] = toCharacterResponse(c)
	}
	writeJSON(w, http.StatusOK, pageResponse[characterResponse]{
		Count: result.Count, Page: page, HasNext: result.HasNext, Results: results,
	})
}

// ListFilms は映画一覧を返す。
// GET /api/films?search=&page=
func (h *CharacterHandler) ListFilms(w http.ResponseWriter, r *http.Request) {
	query, page, ok := listParams(w, r)
	if !ok {
		return
	}

	result, err := h.catalog.ListFilms(r.Context(), query, page)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	results := toFilmResponses(result.Films)
	if results == nil {
		results = []filmResponse{}
	}
	writeJSON(w, http.StatusOK, pageResponse[filmResponse]{
		Count: result.Count, Page: page, HasNext: result.HasNext, Results: results,
	})
}

// ListSpecies は種族一覧を返す。
// GET /api/species?search=&page=
func (h *CharacterHandler) ListSpecies(w http.ResponseWriter, r *http.Request) {
	query, page, ok := listParams(w, r)
	if !ok {
		return
	}

	result, err := h.catalog.ListSpecies(r.Context(), query, page)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	results := toSpeciesResponses(result.Species)
	if results == nil {
		results = []speciesResponse{}
	}
	writeJSON(w, http.StatusOK, pageResponse[speciesResponse]{
		Count: result.Count, Page: page, HasNext: result.HasNext, Results: results,
	})
}

// ListPlanets は惑星一覧を返す。
// GET /api/planets?search=&page=
func (h *CharacterHandler) ListPlanets(w http.ResponseWriter, r *http.Request) {
	query, page, ok := listParams(w, r)
	if !ok {
		return
	}

	result, err := h.catalog.ListPlanets(r.Context(), query, page)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	results := make([]planetResponse, len(result.Planets))
	for i, p := range result.Planets {
		results[i] = toPlanetResponse(p)
	}
	writeJSON(w, http.StatusOK, pageResponse[planetResponse]{
		Count: result.Count, Page: page, HasNext: result.HasNext, Results: results,
	})
}

// StreamDetails はキャラクター詳細の状態変化をNDJSONで配信する。
// 全セクションが解決するかクライアントが切断すると終了する。
// GET /api/characters/details?url=
func (h *CharacterHandler) StreamDetails(w http.ResponseWriter, r *http.Request) {
	characterURL := strings.TrimSpace(r.URL.Query().Get("url"))
	if characterURL == "" {
		handleServiceError(w, r, h.logger, model.NewInvalidURLError("urlが指定されていません"))
		return
	}
	if h.validator != nil {
		if err := h.validator.ValidateURL(characterURL); err != nil {
			handleServiceError(w, r, h.logger, model.NewInvalidURLError(err.Error()))
			return
		}
	}

	states := h.service.GetCharacterDetails(r.Context(), characterURL)
	ch, unsubscribe := states.Subscribe()
	defer unsubscribe()

	out := newNDJSONWriter(w)
	for {
		select {
		case <-r.Context().Done():
			return
		case st, ok := <-ch:
			if !ok {
				return
			}
			if err := out.Write(toDetailResponse(st)); err != nil {
				h.logger.Debug("詳細ストリームの書き込みを中止しました", slog.String("error", err.Error()))
				return
			}
		}
	}
}

func listParams(w http.ResponseWriter, r *http.Request) (string, int, bool) {
	page, ok := pageParam(r)
	if !ok {
		writeInvalidRequest(w, "pageは1以上の整数で指定してください。")
		return "", 0, false
	}
	return strings.TrimSpace(r.URL.Query().Get("search")), page, true
}
