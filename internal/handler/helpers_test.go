package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hitoshi/theforce/internal/detail"
	"github.com/hitoshi/theforce/internal/model"
	"github.com/hitoshi/theforce/internal/stream"
)

// --- モック定義 ---

// mockCharacterService はCharacterServiceInterfaceのモック実装。
type mockCharacterService struct {
	searchFn  func(ctx context.Context, query string, page int) (*model.CharacterPage, error)
	detailsFn func(ctx context.Context, characterURL string) *stream.Stream[model.DetailViewState]
}

func (m *mockCharacterService) Search(ctx context.Context, query string, page int) (*model.CharacterPage, error) {
	if m.searchFn != nil {
		return m.searchFn(ctx, query, page)
	}
	return &model.CharacterPage{}, nil
}

func (m *mockCharacterService) GetCharacterDetails(ctx context.Context, characterURL string) *stream.Stream[model.DetailViewState] {
	if m.detailsFn != nil {
		return m.detailsFn(ctx, characterURL)
	}
	s := stream.NewWithValue(model.NewLoadingDetailState())
	s.Close()
	return s
}

// mockCatalogService はCatalogServiceInterfaceのモック実装。
type mockCatalogService struct {
	listFilmsFn   func(ctx context.Context, query string, page int) (*model.FilmPage, error)
	listSpeciesFn func(ctx context.Context, query string, page int) (*model.SpeciesPage, error)
	listPlanetsFn func(ctx context.Context, query string, page int) (*model.PlanetPage, error)
}

func (m *mockCatalogService) ListFilms(ctx context.Context, query string, page int) (*model.FilmPage, error) {
	if m.listFilmsFn != nil {
		return m.listFilmsFn(ctx, query, page)
	}
	return &model.FilmPage{}, nil
}

func (m *mockCatalogService) ListSpecies(ctx context.Context, query string, page int) (*model.SpeciesPage, error) {
	if m.listSpeciesFn != nil {
		return m.listSpeciesFn(ctx, query, page)
	}
	return &model.SpeciesPage{}, nil
}

func (m *mockCatalogService) ListPlanets(ctx context.Context, query string, page int) (*model.PlanetPage, error) {
	if m.listPlanetsFn != nil {
		return m.listPlanetsFn(ctx, query, page)
	}
	return &model.PlanetPage{}, nil
}

// memFavorites はメモリ上のお気に入りストア。
// FavoriteServiceInterfaceとdetail.FavoriteStoreの両方を満たす。
type memFavorites struct {
	mu    sync.Mutex
	favs  map[string]model.Favorite
	order []string

	getErr    error
	saveErr   error
	deleteErr error
}

func newMemFavorites() *memFavorites {
	return &memFavorites{favs: make(map[string]model.Favorite)}
}

func (m *memFavorites) GetFavorite(_ context.Context, name string) model.FavoriteViewState {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return model.FavoriteViewState{Error: &model.StoreError{Op: model.StoreOpGet, Err: m.getErr}}
	}
	_, ok := m.favs[name]
	return model.FavoriteViewState{IsFavorite: ok}
}

func (m *memFavorites) Get(_ context.Context, name string) (*model.Favorite, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, &model.StoreError{Op: model.StoreOpGet, Err: m.getErr}
	}
	fav, ok := m.favs[name]
	if !ok {
		return nil, nil
	}
	return &fav, nil
}

func (m *memFavorites) List(_ context.Context) ([]model.Favorite, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, &model.StoreError{Op: model.StoreOpList, Err: m.getErr}
	}
	out := []model.Favorite{}
	for _, name := range m.order {
		out = append(out, m.favs[name])
	}
	return out, nil
}

func (m *memFavorites) Save(_ context.Context, fav *model.Favorite) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if fav == nil || strings.TrimSpace(fav.Name()) == "" {
		return model.ErrInvalidFavorite
	}
	if m.saveErr != nil {
		return &model.StoreError{Op: model.StoreOpSave, Err: m.saveErr}
	}
	if _, ok := m.favs[fav.Name()]; !ok {
		m.order = append(m.order, fav.Name())
	}
	saved := *fav
	saved.CreatedAt = time.Date(2024, 5, 4, 0, 0, 0, 0, time.UTC)
	m.favs[fav.Name()] = saved
	return nil
}

func (m *memFavorites) Delete(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleteErr != nil {
		return &model.StoreError{Op: model.StoreOpDelete, Err: m.deleteErr}
	}
	m.removeLocked(name)
	return nil
}

func (m *memFavorites) DeleteAll(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleteErr != nil {
		return &model.StoreError{Op: model.StoreOpDeleteAll, Err: m.deleteErr}
	}
	m.favs = make(map[string]model.Favorite)
	m.order = nil
	return nil
}

func (m *memFavorites) removeLocked(name string) {
	delete(m.favs, name)
	for i, n := range m.order {
		if n == name {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
}

func (m *memFavorites) has(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.favs[name]
	return ok
}

// stubFetcher はgateが閉じられるまで結果を返さないSectionFetcher。
// failに含まれるセクションはエラーになる。
type stubFetcher struct {
	gate chan struct{}
	fail map[model.Section]error
}

func (f *stubFetcher) FetchSections(ctx context.Context, _ string, sections ...model.Section) <-chan model.SectionResult {
	out := make(chan model.SectionResult, len(sections))
	go func() {
		defer close(out)
		if f.gate != nil {
			select {
			case <-f.gate:
			case <-ctx.Done():
				return
			}
		}
		for _, sec := range sections {
			out <- sectionResult(sec, f.fail[sec])
		}
	}()
	return out
}

func sectionResult(sec model.Section, err error) model.SectionResult {
	r := model.SectionResult{Section: sec, Err: err}
	if err != nil {
		return r
	}
	switch sec {
	case model.SectionSpecies:
		r.Species = []model.Species{{Name: "Human", Language: "Galactic Basic"}}
	case model.SectionFilms:
		r.Films = []model.Film{{Title: "A New Hope", OpeningCrawl: "It is a period of civil war."}}
	case model.SectionPlanet:
		r.Planet = &model.Planet{Name: "Tatooine", Population: 200000}
	}
	return r
}

// mockConnectivity はConnectivityInterfaceのモック実装。
type mockConnectivity struct {
	mu        sync.Mutex
	connected bool
}

func (m *mockConnectivity) Connected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

func (m *mockConnectivity) Set(connected bool) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	changed := m.connected != connected
	m.connected = connected
	return changed
}

// mockHealthChecker はHealthCheckerのモック実装。
type mockHealthChecker struct {
	err error
}

func (m *mockHealthChecker) PingContext(context.Context) error {
	return m.err
}

// --- テストヘルパー ---

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(&bytes.Buffer{}, nil))
}

// testEnv はテスト用ルーターと依存をまとめたもの。
type testEnv struct {
	router       http.Handler
	characters   *mockCharacterService
	catalog      *mockCatalogService
	favorites    *memFavorites
	fetcher      *stubFetcher
	manager      *detail.Manager
	connectivity *mockConnectivity
	health       *mockHealthChecker
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		characters:   &mockCharacterService{},
		catalog:      &mockCatalogService{},
		favorites:    newMemFavorites(),
		fetcher:      &stubFetcher{},
		connectivity: &mockConnectivity{connected: true},
		health:       &mockHealthChecker{},
	}
	env.manager = detail.NewManager(detail.Deps{
		Fetcher: env.fetcher,
		Store:   env.favorites,
		Logger:  testLogger(),
	}, time.Minute)
	t.Cleanup(env.manager.Shutdown)

	env.router = NewRouter(&RouterDeps{
		Logger:           testLogger(),
		HealthChecker:    env.health,
		MetricsHandler:   http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { io.WriteString(w, "# metrics\n") }),
		CharacterService: env.characters,
		CatalogService:   env.catalog,
		FavoriteService:  env.favorites,
		SessionManager:   env.manager,
		Connectivity:     env.connectivity,
	})
	return env
}

func (env *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	return w
}

// decodeBody はレスポンスボディをデコードするヘルパー。
func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(w.Body).Decode(&v); err != nil {
		t.Fatalf("failed to decode response: %v\nraw: %s", err, w.Body.String())
	}
	return v
}

// parseAPIErrorResponse はレスポンスボディからAPIErrorレスポンスをパースするヘルパー。
func parseAPIErrorResponse(t *testing.T, w *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	return decodeBody[map[string]string](t, w)
}

// waitFor はcondが真になるまで待つ。
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("タイムアウト: %s", what)
}

const lukeURL = "https://swapi.dev/api/people/1/"

const lukeSessionBody = `{"character":{"name":"Luke Skywalker","birth_year":"19BBY","height_cm":"172","height_inches":"67.7","url":"` + lukeURL + `"}}`
