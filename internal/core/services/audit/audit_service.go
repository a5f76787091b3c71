package audit

import (
	"context"

	"github.com/lcalzada-xor/zerotrace/internal/core/domain"
	"github.com/lcalzada-xor/zerotrace/internal/core/ports"
)

type callerKey struct{}

type caller struct {
	actor      string
	remoteAddr string
}

// WithActor attaches the acting party to ctx. Handlers and CLI commands set it;
// services only read it.
func WithActor(ctx context.Context, actor, remoteAddr string) context.Context {
	return context.WithValue(ctx, callerKey{}, caller{actor: actor, remoteAddr: remoteAddr})
}

type AuditService struct {
	repo ports.AuditRepository
}

func NewAuditService(repo ports.AuditRepository) *AuditService {
	return &AuditService{repo: repo}
}

func (s *AuditService) Log(ctx context.Context, action domain.AuditAction, target, details string) error {
	c, ok := ctx.Value(callerKey{}).(caller)
	if !ok || c.actor == "" {
		c = caller{actor: domain.ActorSystem}
	}

	// Use Domain Factory to ensure business rules
	entry, err := domain.NewAuditLog(c.actor, action, target, details, c.remoteAddr)
	if err != nil {
		return err
	}

	return s.repo.SaveAuditLog(ctx, *entry)
}

func (s *AuditService) GetLogs(ctx context.Context, limit int) ([]domain.AuditLog, error) {
	return s.repo.ListAuditLogs(ctx, limit)
}
