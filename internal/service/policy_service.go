package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mtlprog/taskgate/internal/domain"
	"github.com/mtlprog/taskgate/internal/policy"
	"github.com/mtlprog/taskgate/internal/repository"
)

// PolicyCache is a read-through cache of stored policies.
type PolicyCache interface {
	Get(ctx context.Context, projectID string) (*domain.Policy, bool, error)
	Set(ctx context.Context, policy *domain.Policy) error
	Invalidate(ctx context.Context, projectID string) error
}

// PolicyService reads and edits project approval policies.
type PolicyService struct {
	policyRepo  *repository.PolicyRepository
	projectRepo *repository.ProjectRepository
	validator   *Validator
	cache       PolicyCache
}

// NewPolicyService creates a new PolicyService. policyCache may be nil.
func NewPolicyService(
	policyRepo *repository.PolicyRepository,
	projectRepo *repository.ProjectRepository,
	validator *Validator,
	policyCache PolicyCache,
) *PolicyService {
	return &PolicyService{
		policyRepo:  policyRepo,
		projectRepo: projectRepo,
		validator:   validator,
		cache:       policyCache,
	}
}

// GetPolicy returns the project's policy, or the default policy if none was saved.
func (s *PolicyService) GetPolicy(ctx context.Context, projectID string) (*domain.Policy, error) {
	if s.cache != nil {
		cached, ok, err := s.cache.Get(ctx, projectID)
		if err != nil {
			slog.Warn("policy cache read failed", "project_id", projectID, "error", err)
		} else if ok {
			return cached, nil
		}
	}

	p, err := s.policyRepo.GetByProjectID(ctx, projectID)
	if errors.Is(err, domain.ErrPolicyNotFound) {
		if _, err := s.projectRepo.GetByID(ctx, projectID); err != nil {
			return nil, err
		}
		p = domain.DefaultPolicy(projectID)
	} else if err != nil {
		return nil, fmt.Errorf("get policy: %w", err)
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, p); err != nil {
			slog.Warn("policy cache write failed", "project_id", projectID, "error", err)
		}
	}

	return p, nil
}

// ViewPolicy returns the policy to a project member.
func (s *PolicyService) ViewPolicy(ctx context.Context, projectID, actorID string) (*domain.Policy, error) {
	role, err := s.validator.ActorRole(ctx, projectID, actorID)
	if err != nil {
		return nil, err
	}
	if err := s.validator.CanView(actorID, role); err != nil {
		return nil, err
	}
	return s.GetPolicy(ctx, projectID)
}

// UpdatePolicy validates and replaces the project's policy.
// Pending requests keep the settings captured when they were created.
func (s *PolicyService) UpdatePolicy(ctx context.Context, projectID, actorID string, p *domain.Policy) (*domain.Policy, error) {
	if err := s.authorizeEdit(ctx, projectID, actorID); err != nil {
		return nil, err
	}

	p.ProjectID = projectID
	if err := policy.Validate(p); err != nil {
		return nil, err
	}

	if err := s.save(ctx, p); err != nil {
		return nil, err
	}

	slog.Info("approval policy updated",
		"project_id", projectID,
		"actor_id", actorID,
		"enabled", p.Enabled,
		"rules", len(p.Rules),
	)

	return p, nil
}

// ToggleEnabled switches the policy on or off, keeping its rules.
func (s *PolicyService) ToggleEnabled(ctx context.Context, projectID, actorID string, enabled bool) (*domain.Policy, error) {
	if err := s.authorizeEdit(ctx, projectID, actorID); err != nil {
		return nil, err
	}

	p, err := s.GetPolicy(ctx, projectID)
	if err != nil {
		return nil, err
	}
	p.Enabled = enabled

	if err := s.save(ctx, p); err != nil {
		return nil, err
	}

	slog.Info("approval policy toggled", "project_id", projectID, "actor_id", actorID, "enabled", enabled)

	return p, nil
}

// ApplyTemplate replaces the project's policy with a named template.
func (s *PolicyService) ApplyTemplate(ctx context.Context, projectID, actorID, name string) (*domain.Policy, error) {
	if err := s.authorizeEdit(ctx, projectID, actorID); err != nil {
		return nil, err
	}

	p, err := policy.ApplyTemplate(projectID, name)
	if err != nil {
		return nil, err
	}

	if err := s.save(ctx, p); err != nil {
		return nil, err
	}

	slog.Info("approval policy template applied", "project_id", projectID, "actor_id", actorID, "template", name)

	return p, nil
}

func (s *PolicyService) authorizeEdit(ctx context.Context, projectID, actorID string) error {
	role, err := s.validator.ActorRole(ctx, projectID, actorID)
	if err != nil {
		return err
	}
	return s.validator.CanManagePolicy(actorID, role)
}

func (s *PolicyService) save(ctx context.Context, p *domain.Policy) error {
	if err := s.policyRepo.Upsert(ctx, p); err != nil {
		return fmt.Errorf("save policy: %w", err)
	}
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, p.ProjectID); err != nil {
			slog.Warn("policy cache invalidation failed", "project_id", p.ProjectID, "error", err)
		}
	}
	return nil
}
