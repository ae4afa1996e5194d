package storage

import (
	"context"

	"tvmdeploy/internal/models"
)

// Repository is the deployment journal. Implementations must be safe for
// concurrent use.
type Repository interface {
	// Deployments
	SaveDeployment(ctx context.Context, deployment *models.Deployment) error
	GetDeployment(ctx context.Context, id string) (*models.Deployment, error)
	ListDeployments(ctx context.Context, limit, offset int) ([]*models.Deployment, error)
	CountDeployments(ctx context.Context) (int, error)

	// Contract calls
	SaveContractCall(ctx context.Context, call *models.ContractCall) error
	ListContractCalls(ctx context.Context, address string, limit, offset int) ([]*models.ContractCall, error)

	// Health & Maintenance
	Ping(ctx context.Context) error
	Close() error
}
