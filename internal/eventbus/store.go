package eventbus

import (
	"context"
	"log"

	"github.com/harborgrid-justin/phantom-spire-sub011/internal/models"
	"github.com/harborgrid-justin/phantom-spire-sub011/internal/store"
)

// PublishingStore decorates a store with change-event publishing.
// Events are emitted after the write succeeds; publish failures are
// logged and never fail the operation.
type PublishingStore struct {
	store.ComprehensiveStore
	publisher *Publisher
}

func NewPublishingStore(inner store.ComprehensiveStore, publisher *Publisher) *PublishingStore {
	return &PublishingStore{ComprehensiveStore: inner, publisher: publisher}
}

func (p *PublishingStore) publish(action string, tenant *models.TenantContext, ioc *models.IOC) {
	if err := p.publisher.PublishChange(action, tenant, ioc); err != nil {
		log.Printf("Failed to publish %s event: %v", action, err)
	}
}

func (p *PublishingStore) StoreIOC(ctx context.Context, ioc *models.IOC, tenant *models.TenantContext) (string, error) {
	id, err := p.ComprehensiveStore.StoreIOC(ctx, ioc, tenant)
	if err == nil {
		p.publish("stored", tenant, ioc)
	}
	return id, err
}

func (p *PublishingStore) UpdateIOC(ctx context.Context, ioc *models.IOC, tenant *models.TenantContext) error {
	err := p.ComprehensiveStore.UpdateIOC(ctx, ioc, tenant)
	if err == nil {
		p.publish("updated", tenant, ioc)
	}
	return err
}

func (p *PublishingStore) DeleteIOC(ctx context.Context, id string, tenant *models.TenantContext) error {
	err := p.ComprehensiveStore.DeleteIOC(ctx, id, tenant)
	if err == nil {
		p.publish("deleted", tenant, &models.IOC{ID: id})
	}
	return err
}

func (p *PublishingStore) BulkStoreIOCs(ctx context.Context, iocs []*models.IOC, tenant *models.TenantContext) (*models.BulkOperationResult, error) {
	result, err := p.ComprehensiveStore.BulkStoreIOCs(ctx, iocs, tenant)
	if err == nil {
		for _, ioc := range iocs {
			p.publish("stored", tenant, ioc)
		}
	}
	return result, err
}
