package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/vietddude/searchrelay/internal/core/domain"
)

// AlertPublisher publishes health alerts on AlertChannel.
type AlertPublisher struct {
	c *Client
}

// NewAlertPublisher returns a publisher backed by the client.
func NewAlertPublisher(c *Client) *AlertPublisher {
	return &AlertPublisher{c: c}
}

// Send publishes the alert as JSON.
func (p *AlertPublisher) Send(ctx context.Context, a domain.Alert) error {
	data, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("marshal alert: %w", err)
	}
	if err := p.c.rdb.Publish(ctx, AlertChannel, data).Err(); err != nil {
		return fmt.Errorf("publish failed: %w", err)
	}
	return nil
}
