package service

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/Abdulhakimkamal/otpas-hu-api/internal/models"
)

type auditRecorder interface {
	CreateAuditLog(ctx context.Context, entry *models.AuditLog) error
}

// RequestMeta carries caller details recorded in the audit trail.
type RequestMeta struct {
	ActorID   string
	IP        string
	UserAgent string
}

// Actor is the authenticated caller of a service operation.
type Actor struct {
	ID   string
	Role models.UserRole
	IP   string
	UA   string
}

func (a Actor) Meta() RequestMeta {
	return RequestMeta{ActorID: a.ID, IP: a.IP, UserAgent: a.UA}
}

// writeAudit records an audit entry. Failures are logged and swallowed.
func writeAudit(ctx context.Context, audit auditRecorder, logger *zap.Logger, meta RequestMeta, resource, action, resourceID string, values interface{}) {
	if audit == nil {
		return
	}
	payload, err := json.Marshal(values)
	if err != nil {
		logger.Warn("audit payload encode failed", zap.String("action", action), zap.Error(err))
		payload = nil
	}
	entry := &models.AuditLog{
		Action:     action,
		Resource:   resource,
		ResourceID: &resourceID,
		NewValues:  payload,
		IPAddress:  meta.IP,
		UserAgent:  meta.UserAgent,
	}
	if meta.ActorID != "" {
		actor := meta.ActorID
		entry.UserID = &actor
	}
	if err := audit.CreateAuditLog(ctx, entry); err != nil {
		logger.Warn("audit log failed", zap.String("action", action), zap.Error(err))
	}
}
