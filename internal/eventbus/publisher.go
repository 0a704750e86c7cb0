package eventbus

import (
	"encoding/json"
	"log"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/harborgrid-justin/phantom-spire-sub011/internal/models"
)

// ChangeEvent announces an indicator mutation to downstream consumers.
type ChangeEvent struct {
	Action    string    `json:"action"` // stored|updated|deleted
	TenantID  string    `json:"tenant_id"`
	IOCID     string    `json:"ioc_id"`
	Type      string    `json:"indicator_type,omitempty"`
	Value     string    `json:"value,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type Publisher struct {
	conn *nats.Conn
}

func NewPublisher(natsURL string) (*Publisher, error) {
	conn, err := nats.Connect(natsURL,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(10),
		nats.ReconnectWait(2*time.Second),
	)

	if err != nil {
		return nil, err
	}

	log.Printf("IOC store connected to NATS at %s", natsURL)

	return &Publisher{
		conn: conn,
	}, nil
}

// PublishChange emits one change event on the "ioc.events" subject.
func (p *Publisher) PublishChange(action string, tenant *models.TenantContext, ioc *models.IOC) error {
	event := ChangeEvent{
		Action:    action,
		TenantID:  tenant.TenantID,
		Timestamp: time.Now().UTC(),
	}
	if ioc != nil {
		event.IOCID = ioc.ID
		event.Type = string(ioc.IndicatorType)
		event.Value = ioc.Value
	}

	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	if err := p.conn.Publish("ioc.events", data); err != nil {
		return err
	}

	log.Printf("Published %s event to event bus [%s/%s]", action, event.TenantID, event.IOCID)

	return nil
}

func (p *Publisher) Close() {
	if p.conn != nil {
		p.conn.Close()
		log.Printf("IOC store disconnected from NATS")
	}
}

func (p *Publisher) IsConnected() bool {
	return p.conn != nil && p.conn.IsConnected()
}
