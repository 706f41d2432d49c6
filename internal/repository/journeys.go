package repository

import (
	"context"
	"time"

	"github.com/imyashkale/authbroker/internal/database"
	"github.com/imyashkale/authbroker/internal/models"
)

// JourneyRepository defines the interface for authorization journey operations.
// UpdateJourney is compare-and-set: it fails with ErrVersionConflict when the
// stored version no longer matches the one the caller read.
type JourneyRepository interface {
	CreateJourney(ctx context.Context, journey *models.AuthorizationJourney) error
	GetJourneyById(ctx context.Context, id string) (*models.AuthorizationJourney, error)
	GetJourneyByAuthorizationCode(ctx context.Context, code string) (*models.AuthorizationJourney, error)
	ListJourneysBySubject(ctx context.Context, serverId, subject string) ([]models.AuthorizationJourney, error)
	ListStaleJourneys(ctx context.Context, cutoff time.Time) ([]models.AuthorizationJourney, error)
	ListPurgeableJourneys(ctx context.Context, cutoff time.Time) ([]models.AuthorizationJourney, error)
	UpdateJourney(ctx context.Context, journey *models.AuthorizationJourney) error
	DeleteJourney(ctx context.Context, id string) error
}

// journeyRepository is the concrete implementation of JourneyRepository
type journeyRepository struct {
	db *database.JourneyDB
}

// NewJourneyRepository creates a new instance of JourneyRepository
func NewJourneyRepository(db *database.JourneyDB) JourneyRepository {
	return &journeyRepository{
		db: db,
	}
}

func (r *journeyRepository) CreateJourney(ctx context.Context, journey *models.AuthorizationJourney) error {
	return r.db.CreateJourney(ctx, journey)
}

func (r *journeyRepository) GetJourneyById(ctx context.Context, id string) (*models.AuthorizationJourney, error) {
	return r.db.GetJourneyById(ctx, id)
}

func (r *journeyRepository) GetJourneyByAuthorizationCode(ctx context.Context, code string) (*models.AuthorizationJourney, error) {
	return r.db.GetJourneyByAuthorizationCode(ctx, code)
}

func (r *journeyRepository) ListJourneysBySubject(ctx context.Context, serverId, subject string) ([]models.AuthorizationJourney, error) {
	return r.db.ListJourneysBySubject(ctx, serverId, subject)
}

func (r *journeyRepository) ListStaleJourneys(ctx context.Context, cutoff time.Time) ([]models.AuthorizationJourney, error) {
	return r.db.ListStaleJourneys(ctx, cutoff)
}

func (r *journeyRepository) ListPurgeableJourneys(ctx context.Context, cutoff time.Time) ([]models.AuthorizationJourney, error) {
	return r.db.ListPurgeableJourneys(ctx, cutoff)
}

func (r *journeyRepository) UpdateJourney(ctx context.Context, journey *models.AuthorizationJourney) error {
	return r.db.UpdateJourney(ctx, journey)
}

func (r *journeyRepository) DeleteJourney(ctx context.Context, id string) error {
	return r.db.DeleteJourney(ctx, id)
}

// Re-export database errors for use in handlers and services
var (
	ErrJourneyNotFound = database.ErrJourneyNotFound
	ErrVersionConflict = database.ErrVersionConflict
)
