package services

import (
	"context"
	"errors"
	"log"
	"strconv"

	"tablet-tracker/internal/cache"
	"tablet-tracker/internal/models"
	"tablet-tracker/internal/store"
)

type SystemSettingService struct {
	Store               store.Store
	DefaultCardsPerTurn int
}

func NewSystemSettingService(st store.Store, defaultCardsPerTurn int) *SystemSettingService {
	return &SystemSettingService{Store: st, DefaultCardsPerTurn: defaultCardsPerTurn}
}

func (s *SystemSettingService) GetSetting(ctx context.Context, key string) (*models.SystemSetting, error) {
	var setting *models.SystemSetting
	err := s.Store.View(ctx, func(tx store.Tx) error {
		var err error
		setting, err = tx.GetSetting(ctx, key)
		return err
	})
	return setting, err
}

func (s *SystemSettingService) ListSettings(ctx context.Context) ([]*models.SystemSetting, error) {
	var settings []*models.SystemSetting
	err := s.Store.View(ctx, func(tx store.Tx) error {
		var err error
		settings, err = tx.ListSettings(ctx)
		return err
	})
	return settings, err
}

// UpdateSetting validates known numeric settings before storing them.
func (s *SystemSettingService) UpdateSetting(ctx context.Context, key, value, updatedBy string) error {
	if key == "" {
		return models.NewValidationError("setting_key", "is required")
	}
	if key == models.SettingCardsPerTurn {
		n, err := strconv.Atoi(value)
		if err != nil || n <= 0 {
			return models.NewValidationError("setting_value", "cards_per_turn must be a positive integer")
		}
	}
	err := s.Store.RunInTx(ctx, func(tx store.Tx) error {
		return tx.UpsertSetting(ctx, key, value, "", updatedBy)
	})
	if err != nil {
		return err
	}
	cache.InvalidateSettingCaches(ctx)
	log.Printf("[Settings] %s updated to %q by %s", key, value, updatedBy)
	return nil
}

// ResolveCalcParams reads the calculation tunables once for the current unit of work.
// A missing or malformed row falls back to the configured default.
func (s *SystemSettingService) ResolveCalcParams(ctx context.Context, tx store.Tx) (models.CalcParams, error) {
	params := models.CalcParams{CardsPerTurn: s.DefaultCardsPerTurn}

	setting, err := tx.GetSetting(ctx, models.SettingCardsPerTurn)
	var nf *models.NotFoundError
	if errors.As(err, &nf) {
		return params, nil
	}
	if err != nil {
		return params, err
	}
	if n, convErr := strconv.Atoi(setting.SettingValue); convErr == nil && n > 0 {
		params.CardsPerTurn = n
	} else {
		log.Printf("[Settings] ignoring malformed %s=%q, using %d", models.SettingCardsPerTurn, setting.SettingValue, params.CardsPerTurn)
	}
	return params, nil
}
