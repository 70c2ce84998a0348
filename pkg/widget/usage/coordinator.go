package usage

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const (
	MinRating = 1
	MaxRating = 5
)

var (
	// ErrRatingRequired is returned when no star was selected.
	ErrRatingRequired = errors.New("please select a rating")
	// ErrRatingOutOfRange is returned for ratings outside 1..5.
	ErrRatingOutOfRange = errors.New("rating must be between 1 and 5")
)

// Backend is the slice of the widget API the coordinator needs.
type Backend interface {
	RecordUsage(ctx context.Context, tenantID, sessionID string) error
	SubmitReview(ctx context.Context, tenantID, sessionID string, rating int, comment string) error
}

// Coordinator reports conversation usage and submits satisfaction ratings.
// Deciding when an episode is reported is the controller's job; the
// coordinator only performs the calls.
type Coordinator struct {
	backend Backend
}

func NewCoordinator(backend Backend) *Coordinator {
	return &Coordinator{backend: backend}
}

// RecordUsage reports one episode. Failures are logged here and returned only
// so callers can tell the outcome apart; they are never retried.
func (c *Coordinator) RecordUsage(ctx context.Context, tenantID, sessionID string) error {
	err := c.backend.RecordUsage(ctx, tenantID, sessionID)
	if err != nil {
		log.Warn().Err(err).
			Str("component", "usage").
			Str("tenant", tenantID).
			Str("session", sessionID).
			Msg("usage recording failed")
		return err
	}
	log.Debug().Str("component", "usage").Str("tenant", tenantID).Msg("usage recorded")
	return nil
}

// ValidateRating checks a star value without touching the network.
func ValidateRating(rating int) error {
	if rating == 0 {
		return ErrRatingRequired
	}
	if rating < MinRating || rating > MaxRating {
		return ErrRatingOutOfRange
	}
	return nil
}

// SubmitRating validates the rating locally and then posts the review.
func (c *Coordinator) SubmitRating(ctx context.Context, tenantID, sessionID string, rating int, comment string) error {
	if err := ValidateRating(rating); err != nil {
		return err
	}
	comment = strings.TrimSpace(comment)
	if err := c.backend.SubmitReview(ctx, tenantID, sessionID, rating, comment); err != nil {
		log.Warn().Err(err).
			Str("component", "usage").
			Str("tenant", tenantID).
			Int("rating", rating).
			Msg("rating submission failed")
		return errors.Wrap(err, "submit rating")
	}
	return nil
}
