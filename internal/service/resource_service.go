package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"gatekeeper/internal/authz"
	"gatekeeper/internal/domain"
	"gatekeeper/internal/ids"
	"gatekeeper/internal/metrics"
	"gatekeeper/internal/repository"
)

const unknownKindLabel = "unknown"

// ResourceService guards the ownership registry with the decision engine. Every
// operation is decided before anything is written.
type ResourceService interface {
	Kinds() []string
	Create(ctx context.Context, identity *domain.Identity, kind string) (*domain.OwnedResource, error)
	Get(ctx context.Context, identity *domain.Identity, kind, id string) (*domain.OwnedResource, error)
	Update(ctx context.Context, identity *domain.Identity, kind, id string) (*domain.OwnedResource, error)
	Delete(ctx context.Context, identity *domain.Identity, kind, id string) error
	List(ctx context.Context, identity *domain.Identity, kind string) ([]domain.OwnedResource, error)
}

type resourceService struct {
	resources repository.OwnershipRepository
	engine    *authz.Engine
	log       logrus.FieldLogger
	metrics   *metrics.Metrics
	now       func() time.Time
}

func NewResourceService(resources repository.OwnershipRepository, engine *authz.Engine, log logrus.FieldLogger, m *metrics.Metrics) ResourceService {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &resourceService{
		resources: resources,
		engine:    engine,
		log:       log.WithField("component", "resources"),
		metrics:   m,
		now:       time.Now,
	}
}

func (s *resourceService) Kinds() []string {
	return s.engine.Kinds()
}

func (s *resourceService) Create(ctx context.Context, identity *domain.Identity, kind string) (*domain.OwnedResource, error) {
	kind = normalizeKind(kind)
	if _, err := s.authorize(ctx, identity, kind, domain.ActionCreate, ""); err != nil {
		return nil, err
	}

	res := &domain.OwnedResource{
		Kind:      kind,
		ID:        ids.NewUUID(),
		OwnerID:   identity.PrincipalID,
		CreatedAt: s.now().UTC(),
	}
	if err := s.resources.Create(ctx, res); err != nil {
		return nil, err
	}
	return res, nil
}

func (s *resourceService) Get(ctx context.Context, identity *domain.Identity, kind, id string) (*domain.OwnedResource, error) {
	return s.authorize(ctx, identity, normalizeKind(kind), domain.ActionRead, id)
}

func (s *resourceService) Update(ctx context.Context, identity *domain.Identity, kind, id string) (*domain.OwnedResource, error) {
	kind = normalizeKind(kind)
	res, err := s.authorize(ctx, identity, kind, domain.ActionUpdate, id)
	if err != nil {
		return nil, err
	}
	at := s.now().UTC()
	if err := s.resources.Touch(ctx, kind, id, at); err != nil {
		return nil, err
	}
	res.UpdatedAt = at
	return res, nil
}

func (s *resourceService) Delete(ctx context.Context, identity *domain.Identity, kind, id string) error {
	kind = normalizeKind(kind)
	if _, err := s.authorize(ctx, identity, kind, domain.ActionDelete, id); err != nil {
		return err
	}
	return s.resources.Delete(ctx, kind, id)
}

func (s *resourceService) List(ctx context.Context, identity *domain.Identity, kind string) ([]domain.OwnedResource, error) {
	kind = normalizeKind(kind)
	if _, err := s.authorize(ctx, identity, kind, domain.ActionList, ""); err != nil {
		return nil, err
	}
	policy, _ := s.engine.Policy(kind)
	owner := ""
	if policy.OwnerScoped() {
		owner = identity.PrincipalID
	}
	items, err := s.resources.List(ctx, kind, owner)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []domain.OwnedResource{}
	}
	return items, nil
}

// authorize resolves the target (when the action has one), asks the engine and
// returns the resolved resource on Allow.
func (s *resourceService) authorize(ctx context.Context, identity *domain.Identity, kind string, action domain.Action, id string) (*domain.OwnedResource, error) {
	var (
		res    *domain.OwnedResource
		lookup = domain.Absent()
	)
	if identity != nil && action.TargetsResource() {
		if _, known := s.engine.Policy(kind); known {
			found, err := s.resources.Get(ctx, kind, id)
			switch {
			case err == nil:
				res = found
				lookup = domain.Found(found.OwnerID)
			case !errors.Is(err, domain.ErrResourceAbsent):
				return nil, err
			}
		}
	}

	decision := s.engine.Decide(authz.Request{
		Identity: identity,
		Kind:     kind,
		Action:   action,
		Lookup:   lookup,
	})
	s.metrics.ObserveDecision(s.kindLabel(kind), string(action), decision.Outcome.String(), string(decision.Reason))

	if !decision.Allowed() {
		fields := logrus.Fields{
			"kind":    kind,
			"action":  action,
			"outcome": decision.Outcome.String(),
			"reason":  decision.Reason,
		}
		if identity != nil {
			fields["principal_id"] = identity.PrincipalID
		}
		s.log.WithFields(fields).Debug("access denied")
		return nil, decision.Err()
	}
	return res, nil
}

func normalizeKind(kind string) string {
	return strings.ToLower(strings.TrimSpace(kind))
}

// kindLabel keeps metric cardinality bounded by the configured kinds.
func (s *resourceService) kindLabel(kind string) string {
	if _, known := s.engine.Policy(kind); known {
		return kind
	}
	return unknownKindLabel
}
