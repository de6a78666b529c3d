package remote

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/Quidge/diffharness/internal/protocol"
	"github.com/Quidge/diffharness/internal/target"
)

// DefaultDialTimeout bounds connection establishment.
const DefaultDialTimeout = 10 * time.Second

// Client talks to harness servers.
type Client struct {
	DialTimeout time.Duration
}

var _ target.RemoteClient = (*Client)(nil)

// RunHarness implements target.RemoteClient. The metadata document is
// read from inv.MetadataPath and sent inline.
func (c *Client) RunHarness(ctx context.Context, address string, inv target.Invocation) (int, []string, error) {
	metadata, err := os.ReadFile(inv.MetadataPath)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to read metadata: %w", err)
	}

	req := &RunRequest{Program: inv.Program, Metadata: metadata}
	for _, cfg := range inv.Configs {
		req.Configs = append(req.Configs, cfg.String())
	}

	resp, err := c.roundTrip(ctx, address, Request{Run: req})
	if err != nil {
		return 0, nil, err
	}
	if resp.Run == nil {
		return 0, nil, fmt.Errorf("%s: response carries no run result", address)
	}
	return resp.Run.ExitCode, resp.Run.Lines, nil
}

// Validate sends source to the validation service at address.
func (c *Client) Validate(ctx context.Context, address, backend, source string) (string, bool, error) {
	resp, err := c.roundTrip(ctx, address, Request{Validate: &ValidateRequest{Backend: backend, Source: source}})
	if err != nil {
		return "", false, err
	}
	if resp.Validate == nil {
		return "", false, fmt.Errorf("%s: response carries no validation result", address)
	}
	return resp.Validate.Diagnostic, resp.Validate.Failed, nil
}

func (c *Client) roundTrip(ctx context.Context, address string, req Request) (*Response, error) {
	timeout := c.DialTimeout
	if timeout == 0 {
		timeout = DefaultDialTimeout
	}
	dialer := net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", address, err)
	}
	defer conn.Close()

	// Unblock reads and writes when ctx ends.
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetDeadline(time.Now())
	})
	defer stop()

	if err := protocol.NewEncoder(conn).Encode(req); err != nil {
		return nil, c.connError(ctx, address, "send request", err)
	}

	var resp Response
	if err := protocol.NewDecoder(conn).Decode(&resp); err != nil {
		return nil, c.connError(ctx, address, "read response", err)
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("%s: %s", address, resp.Error)
	}
	return &resp, nil
}

func (c *Client) connError(ctx context.Context, address, op string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%s: %s: %w", address, op, ctxErr)
	}
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return fmt.Errorf("%s: %s: timed out", address, op)
	}
	return fmt.Errorf("%s: failed to %s: %w", address, op, err)
}

// ValidatorClient adapts a Client to a fixed validation service address.
type ValidatorClient struct {
	Client  *Client
	Address string
}

// Validate sends source for backend to the configured service.
func (v ValidatorClient) Validate(ctx context.Context, backend, source string) (string, bool, error) {
	if v.Address == "" {
		return "", false, errors.New("validator address is not configured")
	}
	client := v.Client
	if client == nil {
		client = &Client{}
	}
	return client.Validate(ctx, v.Address, backend, source)
}
