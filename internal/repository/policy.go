package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mtlprog/taskgate/internal/domain"
)

// PolicyRepository stores one approval policy document per project.
type PolicyRepository struct {
	pool *pgxpool.Pool
}

// NewPolicyRepository creates a new PolicyRepository.
func NewPolicyRepository(pool *pgxpool.Pool) *PolicyRepository {
	return &PolicyRepository{pool: pool}
}

// GetByProjectID retrieves the stored policy of a project.
// Returns ErrPolicyNotFound if none was saved yet.
func (r *PolicyRepository) GetByProjectID(ctx context.Context, projectID string) (*domain.Policy, error) {
	query, args, err := psql.
		Select("document", "updated_at").
		From("approval_policies").
		Where(sq.Eq{"project_id": projectID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build GetByProjectID query for policy %s: %w", projectID, err)
	}

	var policy domain.Policy
	var document []byte
	var updatedAt time.Time

	err = r.pool.QueryRow(ctx, query, args...).Scan(&document, &updatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrPolicyNotFound
		}
		return nil, fmt.Errorf("query policy: %w", err)
	}

	if err := json.Unmarshal(document, &policy); err != nil {
		return nil, fmt.Errorf("parse policy document of project %s: %w", projectID, err)
	}
	policy.ProjectID = projectID
	policy.UpdatedAt = updatedAt

	return &policy, nil
}

// Upsert saves the policy document and sets UpdatedAt.
func (r *PolicyRepository) Upsert(ctx context.Context, policy *domain.Policy) error {
	document, err := json.Marshal(policy)
	if err != nil {
		return fmt.Errorf("encode policy document: %w", err)
	}

	query, args, err := psql.
		Insert("approval_policies").
		Columns("project_id", "document", "updated_at").
		Values(policy.ProjectID, document, sq.Expr("NOW()")).
		Suffix("ON CONFLICT (project_id) DO UPDATE SET document = EXCLUDED.document, updated_at = EXCLUDED.updated_at RETURNING updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build Upsert query for policy %s: %w", policy.ProjectID, err)
	}

	if err := r.pool.QueryRow(ctx, query, args...).Scan(&policy.UpdatedAt); err != nil {
		return fmt.Errorf("upsert policy: %w", err)
	}

	return nil
}
