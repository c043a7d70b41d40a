// Package settings administers per-status notification settings and the
// payment instructions text.
package settings

import (
	"context"
	"errors"
	"strings"

	"crm_workflow_backend/internal/notification/repository"
	"crm_workflow_backend/platform/apperr"
	"crm_workflow_backend/platform/logger"
)

const msgSettingNotFound = "notification setting not found"

type Store interface {
	ListSettings(ctx context.Context) ([]repository.Setting, error)
	GetSetting(ctx context.Context, slug string) (repository.Setting, error)
	UpdateSetting(ctx context.Context, slug string, enabled *bool, customMessage *string) (repository.Setting, error)
	PaymentInstructions(ctx context.Context) (string, error)
	SetPaymentInstructions(ctx context.Context, text string) error
}

type Service struct {
	store Store
	log   *logger.Logger
}

func New(store Store, log *logger.Logger) *Service {
	return &Service{store: store, log: log}
}

func (s *Service) List(ctx context.Context) ([]repository.Setting, error) {
	items, err := s.store.ListSettings(ctx)
	if err != nil {
		return nil, apperr.Internal("list notification settings", err)
	}
	return items, nil
}

func (s *Service) Get(ctx context.Context, slug string) (repository.Setting, error) {
	setting, err := s.store.GetSetting(ctx, strings.TrimSpace(slug))
	if errors.Is(err, repository.ErrNotFound) {
		return repository.Setting{}, apperr.NotFound(msgSettingNotFound)
	}
	if err != nil {
		return repository.Setting{}, apperr.Internal("load notification setting", err)
	}
	return setting, nil
}

// Update changes the enabled flag and/or the custom message. A nil field is
// left unchanged; an empty custom message restores the built-in text.
func (s *Service) Update(ctx context.Context, slug string, enabled *bool, customMessage *string) (repository.Setting, error) {
	if enabled == nil && customMessage == nil {
		return repository.Setting{}, apperr.Validation("nothing to update")
	}
	if customMessage != nil {
		trimmed := strings.TrimSpace(*customMessage)
		customMessage = &trimmed
	}

	setting, err := s.store.UpdateSetting(ctx, strings.TrimSpace(slug), enabled, customMessage)
	if errors.Is(err, repository.ErrNotFound) {
		return repository.Setting{}, apperr.NotFound(msgSettingNotFound)
	}
	if err != nil {
		return repository.Setting{}, apperr.Internal("update notification setting", err)
	}
	s.log.Info("notification setting updated", "slug", setting.Slug, "enabled", setting.Enabled)
	return setting, nil
}

func (s *Service) PaymentInstructions(ctx context.Context) (string, error) {
	text, err := s.store.PaymentInstructions(ctx)
	if err != nil {
		return "", apperr.Internal("load payment instructions", err)
	}
	return text, nil
}

// SetPaymentInstructions stores the free-text payment block. An empty text
// selects the structured default block.
func (s *Service) SetPaymentInstructions(ctx context.Context, text string) (string, error) {
	text = strings.TrimSpace(text)
	if err := s.store.SetPaymentInstructions(ctx, text); err != nil {
		return "", apperr.Internal("save payment instructions", err)
	}
	return text, nil
}
