package repositories

import (
	"context"

	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/models"
)

// UpsertResult reports whether an upsert inserted a new row or replaced an
// existing one.
type UpsertResult struct {
	Client *models.Client
	IsNew  bool
}

// ClientRepo defines the interface for client repository operations
type ClientRepo interface {
	DB() database.DB
	Create(ctx context.Context, req models.CreateClientRequest) (*models.Client, error)
	Get(ctx context.Context, id string) (*models.Client, error)
	GetByIDs(ctx context.Context, ids []string) ([]models.Client, error)
	FetchAll(ctx context.Context) ([]models.Client, error)
	List(ctx context.Context, page, pageSize int) (*models.ClientListResponse, error)
	Update(ctx context.Context, id string, req models.UpdateClientRequest) (*models.Client, error)
	UpdateContactCount(ctx context.Context, id string, contactCount int) error
	Upsert(ctx context.Context, client models.Client) (*UpsertResult, error)
	Delete(ctx context.Context, id string) error
}

// ActivityRepo defines the interface for activity repository operations
type ActivityRepo interface {
	DB() database.DB
	Create(ctx context.Context, req models.CreateActivityRequest) (*models.Activity, error)
	Get(ctx context.Context, id string) (*models.Activity, error)
	ListByClient(ctx context.Context, clientID string, page, pageSize int) (*models.ActivityListResponse, error)
	Reassign(ctx context.Context, fromClientID, toClientID string) (int64, error)
	DeleteByClient(ctx context.Context, clientID string) (int64, error)
	Insert(ctx context.Context, activity models.Activity) (*models.Activity, error)
}
