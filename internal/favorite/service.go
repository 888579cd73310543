// Package favorite はお気に入りスナップショットの読み書きを提供する。
// ストアの障害は *model.StoreError として返し、未登録とは区別する。
package favorite

import (
	"context"
	"log/slog"
	"strings"

	"github.com/hitoshi/theforce/internal/metrics"
	"github.com/hitoshi/theforce/internal/model"
	"github.com/hitoshi/theforce/internal/repository"
)

// Service はお気に入りの管理サービス。
type Service struct {
	repo    repository.FavoriteRepository
	metrics metrics.MetricsCollector
	logger  *slog.Logger
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(repo repository.FavoriteRepository, collector metrics.MetricsCollector, logger *slog.Logger) *Service {
	if collector == nil {
		collector = metrics.Nop{}
	}
	return &Service{
		repo:    repo,
		metrics: collector,
		logger:  logger,
	}
}

// GetFavorite は指定名がお気に入り登録済みかを表示状態として返す。
// 未登録はエラーではなくIsFavorite=falseとなる。ストア障害時はErrorにStoreErrorが入る。
func (s *Service) GetFavorite(ctx context.Context, name string) model.FavoriteViewState {
	fav, err := s.Get(ctx, name)
	if err != nil {
		return model.FavoriteViewState{Error: err}
	}
	return model.FavoriteViewState{IsFavorite: fav != nil}
}

// Get は指定名のお気に入りを取得する。見つからない場合はnilを返す。
func (s *Service) Get(ctx context.Context, name string) (*model.Favorite, error) {
	fav, err := s.repo.GetByName(ctx, name)
	s.record(model.StoreOpGet, err)
	if err != nil {
		return nil, s.storeError(model.StoreOpGet, name, err)
	}
	return fav, nil
}

// List は全てのお気に入りを登録順に返す。
func (s *Service) List(ctx context.Context) ([]model.Favorite, error) {
	favorites, err := s.repo.GetAll(ctx)
	s.record(model.StoreOpList, err)
	if err != nil {
		return nil, s.storeError(model.StoreOpList, "", err)
	}
	if favorites == nil {
		favorites = []model.Favorite{}
	}
	return favorites, nil
}

// Save はお気に入りを保存する。同名のお気に入りは置き換える。
// キャラクター名が空の場合はErrInvalidFavoriteを返し、ストアには書き込まない。
func (s *Service) Save(ctx context.Context, fav *model.Favorite) error {
	if fav == nil || strings.TrimSpace(fav.Name()) == "" {
		return model.ErrInvalidFavorite
	}

	err := s.repo.InsertOrReplace(ctx, fav)
	s.record(model.StoreOpSave, err)
	if err != nil {
		return s.storeError(model.StoreOpSave, fav.Name(), err)
	}
	s.logger.Info("お気に入りを保存しました", slog.String("name", fav.Name()))
	return nil
}

// Delete は指定名のお気に入りを削除する。未登録でもエラーにしない。
func (s *Service) Delete(ctx context.Context, name string) error {
	err := s.repo.DeleteByName(ctx, name)
	s.record(model.StoreOpDelete, err)
	if err != nil {
		return s.storeError(model.StoreOpDelete, name, err)
	}
	s.logger.Info("お気に入りを削除しました", slog.String("name", name))
	return nil
}

// DeleteAll は全てのお気に入りを削除する。
func (s *Service) DeleteAll(ctx context.Context) error {
	err := s.repo.DeleteAll(ctx)
	s.record(model.StoreOpDeleteAll, err)
	if err != nil {
		return s.storeError(model.StoreOpDeleteAll, "", err)
	}
	s.logger.Info("お気に入りを全削除しました")
	return nil
}

func (s *Service) record(op model.StoreOp, err error) {
	s.metrics.RecordFavoriteOp(string(op), err)
}

func (s *Service) storeError(op model.StoreOp, name string, err error) error {
	s.logger.Error("お気に入りストアの操作に失敗しました",
		slog.String("op", string(op)),
		slog.String("name", name),
		slog.String("error", err.Error()),
	)
	return &model.StoreError{Op: op, Err: err}
}
