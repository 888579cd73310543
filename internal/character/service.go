// Package character はキャラクター詳細の取得方針（セクションの並列取得と結果の集約）を提供する。
package character

import (
	"context"
	"log/slog"
	"sync"

	"github.com/hitoshi/theforce/internal/model"
	"github.com/hitoshi/theforce/internal/stream"
)

// RemoteSource はキャラクター関連リソースの取得元。
type RemoteSource interface {
	FetchSpecies(ctx context.Context, characterURL string) ([]model.Species, error)
	FetchFilms(ctx context.Context, characterURL string) ([]model.Film, error)
	FetchPlanet(ctx context.Context, characterURL string) (*model.Planet, error)
	SearchCharacters(ctx context.Context, query string, page int) (*model.CharacterPage, error)
}

// Service はキャラクター詳細の取得サービス。
type Service struct {
	remote RemoteSource
	logger *slog.Logger
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(remote RemoteSource, logger *slog.Logger) *Service {
	return &Service{
		remote: remote,
		logger: logger,
	}
}

// Search は名前でキャラクターを検索する。
func (s *Service) Search(ctx context.Context, query string, page int) (*model.CharacterPage, error) {
	if page < 1 {
		page = 1
	}
	return s.remote.SearchCharacters(ctx, query, page)
}

// FetchSections は指定セクションを1セクション1goroutineで並列に取得し、
// 完了した順に結果を送る。失敗はセクションごとに独立して結果に含める。
// 全セクションの結果を送り終えるとチャネルを閉じる。
// ctxがキャンセルされた場合、未送信の結果は捨てられる。
func (s *Service) FetchSections(ctx context.Context, characterURL string, sections ...model.Section) <-chan model.SectionResult {
	out := make(chan model.SectionResult, len(sections))

	var wg sync.WaitGroup
	for _, sec := range sections {
		wg.Add(1)
		go func(sec model.Section) {
			defer wg.Done()

			r := s.fetchSection(ctx, characterURL, sec)
			if r.Err != nil {
				s.logger.Warn("セクションの取得に失敗しました",
					slog.String("section", string(sec)),
					slog.String("url", characterURL),
					slog.String("error", r.Err.Error()),
				)
			}

			select {
			case out <- r:
			case <-ctx.Done():
			}
		}(sec)
	}

	go func() {
		wg.Wait()
		close(out)
	}()

	return out
}

func (s *Service) fetchSection(ctx context.Context, characterURL string, sec model.Section) model.SectionResult {
	r := model.SectionResult{Section: sec}
	switch sec {
	case model.SectionSpecies:
		r.Species, r.Err = s.remote.FetchSpecies(ctx, characterURL)
	case model.SectionFilms:
		r.Films, r.Err = s.remote.FetchFilms(ctx, characterURL)
	case model.SectionPlanet:
		r.Planet, r.Err = s.remote.FetchPlanet(ctx, characterURL)
	}
	return r
}

// GetCharacterDetails は3セクションを並列に取得し、結果が届くたびに集約済みの状態を発行するストリームを返す。
// 最初の値は全セクション取得中の状態。全セクションが確定するとストリームは閉じられる。
func (s *Service) GetCharacterDetails(ctx context.Context, characterURL string) *stream.Stream[model.DetailViewState] {
	st := stream.NewWithValue(model.NewLoadingDetailState())
	results := s.FetchSections(ctx, characterURL, model.AllSections()...)

	go func() {
		defer st.Close()
		for r := range results {
			st.Update(func(cur model.DetailViewState) model.DetailViewState {
				return cur.Apply(r)
			})
		}
	}()

	return st
}
