package extractor

import (
	"context"

	"fetchd/internal/telemetry"
)

// InstrumentedClient wraps a Client with telemetry.
type InstrumentedClient struct {
	client    Client
	telemetry *telemetry.Telemetry
}

// NewInstrumentedClient creates a new instrumented extractor client.
func NewInstrumentedClient(client Client, tel *telemetry.Telemetry) *InstrumentedClient {
	return &InstrumentedClient{
		client:    client,
		telemetry: tel,
	}
}

// Probe inspects a source URL with telemetry.
func (c *InstrumentedClient) Probe(ctx context.Context, req Request) (*Metadata, error) {
	var result *Metadata

	var err error

	instrumentedErr := c.telemetry.InstrumentExtractorOperation(ctx, "probe", func(ctx context.Context) error {
		result, err = c.client.Probe(ctx, req)

		return err
	})

	if instrumentedErr != nil {
		return nil, instrumentedErr
	}

	return result, nil
}

// Fetch downloads a source URL with telemetry.
func (c *InstrumentedClient) Fetch(ctx context.Context, req Request, onProgress ProgressFunc) (string, error) {
	var result string

	var err error

	instrumentedErr := c.telemetry.InstrumentExtractorOperation(ctx, "fetch", func(ctx context.Context) error {
		result, err = c.client.Fetch(ctx, req, onProgress)

		return err
	})

	if instrumentedErr != nil {
		return "", instrumentedErr
	}

	return result, nil
}
