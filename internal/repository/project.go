package repository

import (
	"context"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mtlprog/taskgate/internal/domain"
)

// ProjectRepository handles database operations for projects and their members.
type ProjectRepository struct {
	pool *pgxpool.Pool
}

// NewProjectRepository creates a new ProjectRepository.
func NewProjectRepository(pool *pgxpool.Pool) *ProjectRepository {
	return &ProjectRepository{pool: pool}
}

// GetByID retrieves a project by ID.
func (r *ProjectRepository) GetByID(ctx context.Context, projectID string) (*domain.Project, error) {
	query, args, err := psql.
		Select("id", "name", "created_at").
		From("projects").
		Where(sq.Eq{"id": projectID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build GetByID query for project %s: %w", projectID, err)
	}

	var project domain.Project
	err = r.pool.QueryRow(ctx, query, args...).Scan(&project.ID, &project.Name, &project.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrProjectNotFound
		}
		return nil, fmt.Errorf("query project: %w", err)
	}

	return &project, nil
}

// GetMemberRole returns the user's role in the project.
// Returns ErrPermissionDenied if the user is not a member.
func (r *ProjectRepository) GetMemberRole(ctx context.Context, projectID, userID string) (domain.Role, error) {
	query, args, err := psql.
		Select("role").
		From("project_members").
		Where(sq.Eq{"project_id": projectID, "user_id": userID}).
		ToSql()
	if err != nil {
		return "", fmt.Errorf("build GetMemberRole query: %w", err)
	}

	var role domain.Role
	if err := r.pool.QueryRow(ctx, query, args...).Scan(&role); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", fmt.Errorf("%w: user %s is not a member of project %s", domain.ErrPermissionDenied, userID, projectID)
		}
		return "", fmt.Errorf("query member role: %w", err)
	}

	return role, nil
}

// ListMembers returns the project's active members.
func (r *ProjectRepository) ListMembers(ctx context.Context, projectID string) ([]domain.ProjectMember, error) {
	query, args, err := psql.
		Select("pm.project_id", "pm.user_id", "pm.role").
		From("project_members pm").
		Join("users u ON u.id = pm.user_id").
		Where(sq.Eq{"pm.project_id": projectID, "u.is_active": true}).
		OrderBy("pm.user_id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build ListMembers query: %w", err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query project members: %w", err)
	}

	members, err := pgx.CollectRows(rows, pgx.RowToStructByPos[domain.ProjectMember])
	if err != nil {
		return nil, fmt.Errorf("collect project members: %w", err)
	}
	return members, nil
}
