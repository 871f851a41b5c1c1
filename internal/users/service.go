package users

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Service struct {
	repo   *Repository
	cache  *ListCache
	logger *zap.Logger
}

func NewService(repo *Repository, cache *ListCache, logger *zap.Logger) *Service {
	return &Service{repo: repo, cache: cache, logger: logger}
}

func (s *Service) Create(ctx context.Context, user *User) error {
	if err := s.repo.Create(ctx, user); err != nil {
		return err
	}
	s.cache.Invalidate()
	return nil
}

func (s *Service) Update(ctx context.Context, user *User) error {
	if err := s.repo.Update(ctx, user); err != nil {
		return err
	}
	s.cache.Invalidate()
	return nil
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.cache.Invalidate()
	return nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*User, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context) ([]*User, error) {
	return s.cache.List(ctx)
}

func (s *Service) DisplayName(ctx context.Context, id uuid.UUID) string {
	name, err := s.cache.DisplayName(ctx, id)
	if err != nil {
		s.logger.Warn("display name lookup failed", zap.String("user_id", id.String()), zap.Error(err))
		return ""
	}
	return name
}
