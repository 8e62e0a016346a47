// internal/common/camunda/client.go
package camunda

import (
	"context"
	"fmt"
	"time"

	"catalog-bff/internal/common/config"
	"catalog-bff/internal/common/errors"

	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
)

// Client wraps the Zeebe gRPC client.
type Client struct {
	client  zbc.Client
	timeout time.Duration
}

// NewClient dials the broker and verifies the connection with a topology
// request.
func NewClient(cfg config.CamundaConfig) (*Client, error) {
	zeebeClient, err := zbc.NewClient(&zbc.ClientConfig{
		GatewayAddress:         cfg.BrokerAddress,
		UsePlaintextConnection: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Zeebe client: %w", err)
	}

	c := &Client{client: zeebeClient, timeout: config.GetDuration(cfg.Timeout)}
	if c.timeout <= 0 {
		c.timeout = 10 * time.Second
	}

	if err := c.HealthCheck(context.Background()); err != nil {
		zeebeClient.Close()
		return nil, errors.NewUpstreamUnavailableError("zeebe", fmt.Errorf("broker %s: %w", cfg.BrokerAddress, err))
	}
	return c, nil
}

// GetClient returns the raw Zeebe client for job workers.
func (c *Client) GetClient() zbc.Client {
	return c.client
}

func (c *Client) Close() error {
	return c.client.Close()
}

// HealthCheck performs a topology request against the broker.
func (c *Client) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if _, err := c.client.NewTopologyCommand().Send(ctx); err != nil {
		return fmt.Errorf("zeebe health check failed: %w", err)
	}
	return nil
}
