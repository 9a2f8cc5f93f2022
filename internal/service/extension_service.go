package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/kingsley805-tech/edumanageschools-sub001/internal/model"
	"github.com/kingsley805-tech/edumanageschools-sub001/internal/repository"
)

// ExtensionService grants extra time to running attempts. Live sessions pick
// grants up through their extension poller.
type ExtensionService struct {
	attemptRepo   *repository.AttemptRepository
	extensionRepo *repository.ExtensionRepository
	log           zerolog.Logger
}

// NewExtensionService creates a new ExtensionService.
func NewExtensionService(attemptRepo *repository.AttemptRepository, extensionRepo *repository.ExtensionRepository, log zerolog.Logger) *ExtensionService {
	return &ExtensionService{
		attemptRepo:   attemptRepo,
		extensionRepo: extensionRepo,
		log:           log.With().Str("component", "extension_service").Logger(),
	}
}

// Grant records an extension for an in-progress attempt.
func (s *ExtensionService) Grant(ctx context.Context, attemptID, grantedBy uuid.UUID, req model.GrantExtensionRequest) (*model.TimeExtension, error) {
	attempt, err := s.attemptRepo.GetByID(ctx, attemptID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("get attempt: %w", err)
	}
	if attempt.Status != model.AttemptStatusInProgress {
		return nil, ErrAlreadySubmitted
	}

	ext := &model.TimeExtension{
		AttemptID: attemptID,
		Minutes:   req.Minutes,
	}
	if grantedBy != uuid.Nil {
		ext.GrantedBy = &grantedBy
	}
	if reason := strings.TrimSpace(req.Reason); reason != "" {
		ext.Reason = &reason
	}
	if err := s.extensionRepo.Create(ctx, ext); err != nil {
		return nil, fmt.Errorf("create extension: %w", err)
	}

	s.log.Info().
		Str("attempt_id", attemptID.String()).
		Int("minutes", req.Minutes).
		Msg("Time extension granted")
	return ext, nil
}

// List returns the extensions of an attempt.
func (s *ExtensionService) List(ctx context.Context, attemptID uuid.UUID) ([]model.TimeExtension, error) {
	if _, err := s.attemptRepo.GetByID(ctx, attemptID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("get attempt: %w", err)
	}
	exts, err := s.extensionRepo.ListByAttempt(ctx, attemptID)
	if err != nil {
		return nil, fmt.Errorf("list extensions: %w", err)
	}
	return exts, nil
}
