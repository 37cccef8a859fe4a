package notify

import (
	"context"

	"facewatch/internal/models"
)

// AlertStore is the part of the alert repository used by AuditTransport.
type AlertStore interface {
	Insert(alert *models.Alert) error
}

// AuditTransport records every alert in the database.
type AuditTransport struct {
	store AlertStore
}

func NewAuditTransport(store AlertStore) *AuditTransport {
	return &AuditTransport{store: store}
}

func (t *AuditTransport) Name() string { return "audit" }

func (t *AuditTransport) Deliver(ctx context.Context, alert models.Alert) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return t.store.Insert(&alert)
}
