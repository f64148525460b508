// Package catalog serves the menu document and the order-window tunables.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/example/bistro/pkg/apperr"
	"github.com/example/bistro/pkg/models"
	"github.com/example/bistro/pkg/repository"
	"go.uber.org/zap"
)

type Store interface {
	repository.MenuRepository
	repository.ConfigRepository
}

type Service struct {
	store  Store
	logger *zap.Logger
}

func NewService(store Store, logger *zap.Logger) *Service {
	return &Service{store: store, logger: logger}
}

// Config returns the stored tunables, or the defaults if none were saved.
func (s *Service) Config(ctx context.Context) (models.Config, error) {
	cfg, err := s.store.GetConfig(ctx)
	if errors.Is(err, repository.ErrNotFound) {
		return models.DefaultConfig(), nil
	}
	if err != nil {
		return models.Config{}, apperr.Wrap(apperr.StorageError, "Could not load configuration", err)
	}
	return cfg, nil
}

func (s *Service) SetConfig(ctx context.Context, cfg models.Config) (models.Config, error) {
	if cfg.CancellationCutoffMinutes < 0 || cfg.PaidVisibilityMinutes < 0 {
		return models.Config{}, apperr.New(apperr.InvalidArgument, "minutes must not be negative")
	}
	if err := s.store.ReplaceConfig(ctx, cfg); err != nil {
		return models.Config{}, apperr.Wrap(apperr.StorageError, "Could not save configuration", err)
	}

	s.logger.Info("Configuration updated",
		zap.Int("cancellation_cutoff_minutes", cfg.CancellationCutoffMinutes),
		zap.Int("paid_visibility_minutes", cfg.PaidVisibilityMinutes))
	return cfg, nil
}

func (s *Service) Menu(ctx context.Context) (models.Menu, error) {
	menu, err := s.store.GetMenu(ctx)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.New(apperr.NotFound, "Menu not found")
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.StorageError, "Could not load menu", err)
	}
	return menu, nil
}

func (s *Service) ReplaceMenu(ctx context.Context, menu models.Menu) error {
	if menu == nil {
		return apperr.New(apperr.InvalidArgument, "menu must be a JSON object")
	}
	if err := s.store.ReplaceMenu(ctx, menu); err != nil {
		return apperr.Wrap(apperr.StorageError, "Could not save menu", err)
	}
	s.logger.Info("Menu replaced", zap.Int("keys", len(menu)))
	return nil
}

// SeedDefaults stores the menu found in menuFile when no menu exists yet, and
// the default config when none exists. A missing or unreadable seed file is
// logged and skipped.
func (s *Service) SeedDefaults(ctx context.Context, menuFile string) error {
	_, err := s.store.GetMenu(ctx)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		menu, rerr := readMenuFile(menuFile)
		if rerr != nil {
			s.logger.Warn("Could not seed menu", zap.String("file", menuFile), zap.Error(rerr))
			break
		}
		if err := s.store.ReplaceMenu(ctx, menu); err != nil {
			return fmt.Errorf("failed to seed menu: %w", err)
		}
		s.logger.Info("Seeded menu", zap.String("file", menuFile))
	case err != nil:
		return fmt.Errorf("failed to check menu: %w", err)
	}

	_, err = s.store.GetConfig(ctx)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		if err := s.store.ReplaceConfig(ctx, models.DefaultConfig()); err != nil {
			return fmt.Errorf("failed to seed config: %w", err)
		}
		s.logger.Info("Seeded default config")
	case err != nil:
		return fmt.Errorf("failed to check config: %w", err)
	}
	return nil
}

func readMenuFile(path string) (models.Menu, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var menu models.Menu
	if err := json.Unmarshal(data, &menu); err != nil {
		return nil, fmt.Errorf("invalid menu file: %w", err)
	}
	if menu == nil {
		return nil, errors.New("menu file is not a JSON object")
	}
	return menu, nil
}
