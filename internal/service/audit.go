package service

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/noah-isme/admission-api/internal/models"
)

type auditRecorder interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// Actor identifies who performed a staff action. An empty AccountID means a command-line run.
type Actor struct {
	AccountID string
	Meta      models.RequestMeta
}

func recordAudit(ctx context.Context, repo auditRecorder, logger *zap.Logger, actor Actor, action, resource, resourceID string, oldValues, newValues interface{}) {
	if repo == nil {
		return
	}
	entry := &models.AuditLog{
		Action:    action,
		Resource:  resource,
		IPAddress: actor.Meta.IP,
		UserAgent: actor.Meta.UserAgent,
	}
	if actor.AccountID != "" {
		id := actor.AccountID
		entry.AccountID = &id
	}
	if resourceID != "" {
		entry.ResourceID = &resourceID
	}
	if oldValues != nil {
		entry.OldValues, _ = json.Marshal(oldValues)
	}
	if newValues != nil {
		entry.NewValues, _ = json.Marshal(newValues)
	}
	if err := repo.CreateAuditLog(ctx, entry); err != nil {
		logger.Warn("failed to record audit log", zap.String("action", action), zap.Error(err))
	}
}
