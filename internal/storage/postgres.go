package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"tvmdeploy/internal/errs"
	"tvmdeploy/internal/models"
	"tvmdeploy/internal/retry"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS deployments (
	id             UUID PRIMARY KEY,
	contract_name  TEXT NOT NULL,
	address        TEXT NOT NULL,
	public_key     TEXT NOT NULL,
	code_hash      TEXT NOT NULL,
	workchain      INTEGER NOT NULL,
	stage          TEXT NOT NULL,
	funding_amount NUMERIC(20,0) NOT NULL,
	funding_tx_id  TEXT NOT NULL DEFAULT '',
	funding_polls  INTEGER NOT NULL DEFAULT 0,
	balance        NUMERIC(20,0) NOT NULL DEFAULT 0,
	deploy_tx_id   TEXT NOT NULL DEFAULT '',
	error          TEXT NOT NULL DEFAULT '',
	failed_stage   TEXT NOT NULL DEFAULT '',
	created_at     TIMESTAMPTZ NOT NULL,
	updated_at     TIMESTAMPTZ NOT NULL
);

ALTER TABLE deployments
	ALTER COLUMN funding_amount TYPE NUMERIC(20,0),
	ALTER COLUMN balance TYPE NUMERIC(20,0);

CREATE INDEX IF NOT EXISTS deployments_address_idx ON deployments (address);

CREATE TABLE IF NOT EXISTS contract_calls (
	id         UUID PRIMARY KEY,
	contract   TEXT NOT NULL,
	address    TEXT NOT NULL,
	function   TEXT NOT NULL,
	signed     BOOLEAN NOT NULL,
	tx_id      TEXT NOT NULL DEFAULT '',
	error      TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS contract_calls_address_idx ON contract_calls (address, created_at DESC);
`

// PostgresRepository implements the Repository interface using PostgreSQL
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository connects to databaseURL, retrying transient failures
// with strategy, and makes sure the journal tables exist.
func NewPostgresRepository(ctx context.Context, databaseURL string, strategy retry.Strategy) (*PostgresRepository, error) {
	var pool *pgxpool.Pool

	err := strategy.Execute(ctx, func() error {
		p, err := pgxpool.New(ctx, databaseURL)
		if err != nil {
			return fmt.Errorf("failed to create connection pool: %w", err)
		}
		if err := p.Ping(ctx); err != nil {
			p.Close()
			return fmt.Errorf("failed to ping database: %w", err)
		}
		pool = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	r := &PostgresRepository{pool: pool}
	if err := r.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	slog.Info("Connected to journal database", "retry_strategy", strategy.Name())
	return r, nil
}

// EnsureSchema creates the journal tables if they are missing
func (r *PostgresRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// SaveDeployment inserts or updates a deployment
func (r *PostgresRepository) SaveDeployment(ctx context.Context, d *models.Deployment) error {
	query := `
		INSERT INTO deployments (
			id, contract_name, address, public_key, code_hash, workchain,
			stage, funding_amount, funding_tx_id, funding_polls, balance,
			deploy_tx_id, error, failed_stage, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8::text::numeric, $9, $10, $11::text::numeric, $12, $13, $14, $15, $16)
		ON CONFLICT (id) DO UPDATE SET
			stage = EXCLUDED.stage,
			funding_tx_id = EXCLUDED.funding_tx_id,
			funding_polls = EXCLUDED.funding_polls,
			balance = EXCLUDED.balance,
			deploy_tx_id = EXCLUDED.deploy_tx_id,
			error = EXCLUDED.error,
			failed_stage = EXCLUDED.failed_stage,
			updated_at = EXCLUDED.updated_at
	`

	_, err := r.pool.Exec(ctx, query,
		d.ID,
		d.ContractName,
		d.Address,
		d.PublicKey,
		d.CodeHash,
		d.Workchain,
		string(d.Stage),
		formatAmount(d.FundingAmount),
		d.FundingTxID,
		d.FundingPolls,
		formatAmount(d.Balance),
		d.DeployTxID,
		d.Error,
		string(d.FailedStage),
		d.CreatedAt,
		d.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save deployment: %w", err)
	}

	return nil
}

const deploymentColumns = `
	id, contract_name, address, public_key, code_hash, workchain,
	stage, funding_amount::text, funding_tx_id, funding_polls, balance::text,
	deploy_tx_id, error, failed_stage, created_at, updated_at
`

func scanDeployment(row pgx.Row) (*models.Deployment, error) {
	var (
		d                      models.Deployment
		stage, failedStage     string
		fundingAmount, balance string
	)

	err := row.Scan(
		&d.ID,
		&d.ContractName,
		&d.Address,
		&d.PublicKey,
		&d.CodeHash,
		&d.Workchain,
		&stage,
		&fundingAmount,
		&d.FundingTxID,
		&d.FundingPolls,
		&balance,
		&d.DeployTxID,
		&d.Error,
		&failedStage,
		&d.CreatedAt,
		&d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	d.Stage = models.Stage(stage)
	d.FailedStage = models.Stage(failedStage)
	if d.FundingAmount, err = parseAmount(fundingAmount); err != nil {
		return nil, err
	}
	if d.Balance, err = parseAmount(balance); err != nil {
		return nil, err
	}
	return &d, nil
}

// Amounts are uint64 nanotokens, stored as NUMERIC(20,0) and exchanged as
// decimal text.
func formatAmount(v uint64) string {
	return strconv.FormatUint(v, 10)
}

func parseAmount(s string) (uint64, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid stored amount %q: %w", s, err)
	}
	return v, nil
}

// GetDeployment retrieves a deployment by id
func (r *PostgresRepository) GetDeployment(ctx context.Context, id string) (*models.Deployment, error) {
	query := `SELECT ` + deploymentColumns + ` FROM deployments WHERE id = $1`

	d, err := scanDeployment(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errs.Newf(errs.ErrNotFound, "get deployment", "deployment not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get deployment: %w", err)
	}

	return d, nil
}

// ListDeployments lists deployments, newest first
func (r *PostgresRepository) ListDeployments(ctx context.Context, limit, offset int) ([]*models.Deployment, error) {
	query := `SELECT ` + deploymentColumns + ` FROM deployments ORDER BY created_at DESC LIMIT $1 OFFSET $2`

	rows, err := r.pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list deployments: %w", err)
	}
	defer rows.Close()

	deployments := []*models.Deployment{}
	for rows.Next() {
		d, err := scanDeployment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan deployment: %w", err)
		}
		deployments = append(deployments, d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating deployments: %w", err)
	}

	return deployments, nil
}

// CountDeployments returns the number of journaled deployments
func (r *PostgresRepository) CountDeployments(ctx context.Context) (int, error) {
	var count int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM deployments`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count deployments: %w", err)
	}
	return count, nil
}

// SaveContractCall records a submitted call
func (r *PostgresRepository) SaveContractCall(ctx context.Context, call *models.ContractCall) error {
	query := `
		INSERT INTO contract_calls (
			id, contract, address, function, signed, tx_id, error, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO NOTHING
	`

	_, err := r.pool.Exec(ctx, query,
		call.ID,
		call.Contract,
		call.Address,
		call.Function,
		call.Signed,
		call.TxID,
		call.Error,
		call.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save contract call: %w", err)
	}

	return nil
}

// ListContractCalls lists calls made to address, newest first
func (r *PostgresRepository) ListContractCalls(ctx context.Context, address string, limit, offset int) ([]*models.ContractCall, error) {
	query := `
		SELECT id, contract, address, function, signed, tx_id, error, created_at
		FROM contract_calls
		WHERE address = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.pool.Query(ctx, query, address, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list contract calls: %w", err)
	}
	defer rows.Close()

	calls := []*models.ContractCall{}
	for rows.Next() {
		var call models.ContractCall
		err := rows.Scan(
			&call.ID,
			&call.Contract,
			&call.Address,
			&call.Function,
			&call.Signed,
			&call.TxID,
			&call.Error,
			&call.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan contract call: %w", err)
		}
		calls = append(calls, &call)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating contract calls: %w", err)
	}

	return calls, nil
}

// Ping checks if the database connection is alive
func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// Close closes the database connection pool
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}
