// Package swapi はStar Wars API（SWAPI）のクライアントを提供する。
// キャラクター・種族・映画・惑星の取得と検索、接続確認を行う。
package swapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/hitoshi/theforce/internal/metrics"
	"github.com/hitoshi/theforce/internal/model"
	"github.com/hitoshi/theforce/internal/security"
)

const (
	// DefaultBaseURL は公開SWAPIのベースURL。
	DefaultBaseURL = "https://swapi.dev/api"
	userAgent      = "TheForce/1.0"
	// defaultMaxBodySize はレスポンスボディの最大サイズ（1MB）。
	defaultMaxBodySize = 1 << 20
	// defaultMaxConcurrency はリンク先リソースの最大並列取得数。
	defaultMaxConcurrency = 4
)

// ClientConfig はClientの設定パラメータ。
type ClientConfig struct {
	BaseURL string
	// RateLimit はSWAPIへのリクエストレート（req/sec）。0以下は無制限。
	RateLimit      float64
	RateBurst      int
	MaxConcurrency int
	MaxBodySize    int64
}

// Client はSWAPIのクライアント。
// 全リクエストはURL検証とレートリミッターを通過してから送信される。
type Client struct {
	httpClient     *http.Client
	baseURL        string
	guard          security.URLValidator
	sanitizer      security.TextSanitizer
	limiter        *rate.Limiter
	metrics        metrics.MetricsCollector
	logger         *slog.Logger
	maxConcurrency int
	maxBodySize    int64
}

// NewClient はClientの新しいインスタンスを生成する。
func NewClient(
	httpClient *http.Client,
	guard security.URLValidator,
	sanitizer security.TextSanitizer,
	collector metrics.MetricsCollector,
	logger *slog.Logger,
	cfg ClientConfig,
) *Client {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 1
	}

	maxConcurrency := cfg.MaxConcurrency
	if maxConcurrency <= 0 {
		maxConcurrency = defaultMaxConcurrency
	}
	maxBodySize := cfg.MaxBodySize
	if maxBodySize <= 0 {
		maxBodySize = defaultMaxBodySize
	}
	if collector == nil {
		collector = metrics.Nop{}
	}

	return &Client{
		httpClient:     httpClient,
		baseURL:        baseURL,
		guard:          guard,
		sanitizer:      sanitizer,
		limiter:        rate.NewLimiter(limit, burst),
		metrics:        collector,
		logger:         logger,
		maxConcurrency: maxConcurrency,
		maxBodySize:    maxBodySize,
	}
}

// BaseURL は正規化済みのベースURLを返す。
func (c *Client) BaseURL() string {
	return c.baseURL
}

// GetCharacter はキャラクターURLからキャラクターを取得する。
func (c *Client) GetCharacter(ctx context.Context, characterURL string) (*model.Character, error) {
	p, err := c.getPerson(ctx, characterURL)
	if err != nil {
		return nil, err
	}
	ch := c.toCharacter(*p)
	if ch.URL == "" {
		ch.URL = characterURL
	}
	return &ch, nil
}

// FetchSpecies はキャラクターの種族一覧を取得する。
// 種族が登録されていないキャラクター（SWAPIでは人間が該当する）は空スライスを返す。
func (c *Client) FetchSpecies(ctx context.Context, characterURL string) ([]model.Species, error) {
	p, err := c.getPerson(ctx, characterURL)
	if err != nil {
		return nil, err
	}

	raw, err := fetchAll[speciesResponse](ctx, c, "species", p.Species)
	if err != nil {
		return nil, err
	}

	species := make([]model.Species, len(raw))
	for i, s := range raw {
		species[i] = c.toSpecies(s)
	}
	return species, nil
}

// FetchFilms はキャラクターの出演映画一覧をSWAPIのリンク順で取得する。
func (c *Client) FetchFilms(ctx context.Context, characterURL string) ([]model.Film, error) {
	p, err := c.getPerson(ctx, characterURL)
	if err != nil {
		return nil, err
	}

	raw, err := fetchAll[filmResponse](ctx, c, "films", p.Films)
	if err != nil {
		return nil, err
	}

	films := make([]model.Film, len(raw))
	for i, f := range raw {
		films[i] = c.toFilm(f)
	}
	return films, nil
}

// FetchPlanet はキャラクターの出身惑星を取得する。
// 出身惑星のリンクがない場合はゼロ値の惑星を返す。
func (c *Client) FetchPlanet(ctx context.Context, characterURL string) (*model.Planet, error) {
	p, err := c.getPerson(ctx, characterURL)
	if err != nil {
		return nil, err
	}
	if p.Homeworld == "" {
		return &model.Planet{}, nil
	}

	var raw planetResponse
	if err := c.getJSON(ctx, "planets", p.Homeworld, &raw); err != nil {
		return nil, err
	}
	planet := c.toPlanet(raw)
	return &planet, nil
}

// SearchCharacters は名前でキャラクターを検索する。queryが空の場合は全件をページ単位で返す。
func (c *Client) SearchCharacters(ctx context.Context, query string, page int) (*model.CharacterPage, error) {
	var raw pageResponse[personResponse]
	if err := c.getJSON(ctx, "people", c.listURL("people", query, page), &raw); err != nil {
		return nil, err
	}

	out := &model.CharacterPage{Count: raw.Count, HasNext: raw.hasNext()}
	out.Characters = make([]model.Character, len(raw.Results))
	for i, p := range raw.Results {
		out.Characters[i] = c.toCharacter(p)
	}
	return out, nil
}

// ListFilms は映画一覧を取得する。
func (c *Client) ListFilms(ctx context.Context, query string, page int) (*model.FilmPage, error) {
	var raw pageResponse[filmResponse]
	if err := c.getJSON(ctx, "films", c.listURL("films", query, page), &raw); err != nil {
		return nil, err
	}

	out := &model.FilmPage{Count: raw.Count, HasNext: raw.hasNext()}
	out.Films = make([]model.Film, len(raw.Results))
	for i, f := range raw.Results {
		out.Films[i] = c.toFilm(f)
	}
	return out, nil
}

// ListSpecies は種族一覧を取得する。
func (c *Client) ListSpecies(ctx context.Context, query string, page int) (*model.SpeciesPage, error) {
	var raw pageResponse[speciesResponse]
	if err := c.getJSON(ctx, "species", c.listURL("species", query, page), &raw); err != nil {
		return nil, err
	}

	out := &model.SpeciesPage{Count: raw.Count, HasNext: raw.hasNext()}
	out.Species = make([]model.Species, len(raw.Results))
	for i, s := range raw.Results {
		out.Species[i] = c.toSpecies(s)
	}
	return out, nil
}

// ListPlanets は惑星一覧を取得する。
func (c *Client) ListPlanets(ctx context.Context, query string, page int) (*model.PlanetPage, error) {
	var raw pageResponse[planetResponse]
	if err := c.getJSON(ctx, "planets", c.listURL("planets", query, page), &raw); err != nil {
		return nil, err
	}

	out := &model.PlanetPage{Count: raw.Count, HasNext: raw.hasNext()}
	out.Planets = make([]model.Planet, len(raw.Results))
	for i, p := range raw.Results {
		out.Planets[i] = c.toPlanet(p)
	}
	return out, nil
}

// Ping はSWAPIに到達できるかを確認する。
// HTTPレスポンスが返れば到達可能とみなし、ステータスコードは問わない。
// 接続確認がレートリミットで詰まらないよう、リミッターは通さない。
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/", nil)
	if err != nil {
		return fmt.Errorf("リクエスト作成に失敗: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	io.Copy(io.Discard, io.LimitReader(resp.Body, c.maxBodySize))
	resp.Body.Close()
	return nil
}

func (c *Client) listURL(resource, query string, page int) string {
	q := url.Values{}
	if query != "" {
		q.Set("search", query)
	}
	if page > 1 {
		q.Set("page", strconv.Itoa(page))
	}
	u := c.baseURL + "/" + resource + "/"
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	return u
}

func (c *Client) getPerson(ctx context.Context, characterURL string) (*personResponse, error) {
	var p personResponse
	if err := c.getJSON(ctx, "people", characterURL, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// getJSON はURLを検証し、レートリミッターを待ってからGETしてJSONをデコードする。
func (c *Client) getJSON(ctx context.Context, resource, rawURL string, out any) (err error) {
	start := time.Now()
	defer func() {
		c.metrics.RecordRemoteFetch(resource, err)
		c.metrics.RecordFetchLatency(resource, time.Since(start))
	}()

	if err := c.guard.ValidateURL(rawURL); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("レートリミット待機が中断されました: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("リクエスト作成に失敗: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("SWAPIへのリクエストに失敗しました",
			slog.String("resource", resource),
			slog.String("url", rawURL),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("HTTPリクエスト失敗: %w", err)
	}
	defer resp.Body.Close()

	c.metrics.RecordHTTPStatus(resp.StatusCode)

	if class := ClassifyHTTPStatus(resp.StatusCode); class != StatusClassOK {
		c.logger.Warn("SWAPIがエラーステータスを返しました",
			slog.String("resource", resource),
			slog.String("url", rawURL),
			slog.Int("http_status", resp.StatusCode),
			slog.String("class", class.String()),
		)
		io.Copy(io.Discard, io.LimitReader(resp.Body, c.maxBodySize))
		return &StatusError{URL: rawURL, StatusCode: resp.StatusCode, Class: class}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBodySize+1))
	if err != nil {
		return fmt.Errorf("レスポンスボディの読み取りに失敗: %w", err)
	}
	if int64(len(body)) > c.maxBodySize {
		return fmt.Errorf("レスポンスボディが上限 %d バイトを超えています", c.maxBodySize)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("レスポンスJSONのパースに失敗: %w", err)
	}

	c.logger.Debug("SWAPIリソースを取得しました",
		slog.String("resource", resource),
		slog.String("url", rawURL),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
	return nil
}

// fetchAll はリンク先リソースをsemaphoreで並列数を制限しながら取得する。
// 結果はurlsと同じ順序で返す。1件でも失敗した場合は最初のエラーを返す。
func fetchAll[T any](ctx context.Context, c *Client, resource string, urls []string) ([]T, error) {
	results := make([]T, len(urls))
	errs := make([]error, len(urls))

	sem := make(chan struct{}, c.maxConcurrency)
	var wg sync.WaitGroup

	for i, u := range urls {
		wg.Add(1)
		sem <- struct{}{}

		go func(i int, u string) {
			defer wg.Done()
			defer func() { <-sem }()

			var out T
			if err := c.getJSON(ctx, resource, u, &out); err != nil {
				errs[i] = err
				return
			}
			results[i] = out
		}(i, u)
	}

	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return results, nil
}
