package control

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/oshokin/gentle-alert/internal/config"
	"github.com/oshokin/gentle-alert/internal/domain/alert"
	"github.com/oshokin/gentle-alert/internal/version"
)

// Client wraps a ControlService connection with convenience helpers.
type Client struct {
	// conn is the underlying gRPC connection to the daemon.
	conn *grpc.ClientConn

	// callTimeout is the default timeout for individual unary calls.
	callTimeout time.Duration
}

// Option configures client behaviour.
type Option func(*Client)

// WithCallTimeout sets a default timeout for unary calls.
func WithCallTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.callTimeout = timeout
		}
	}
}

// errAddressRequired is returned when a required address value is missing.
var errAddressRequired = errors.New("address must be provided")

// Dial creates a client for the daemon at address. The control API listens on
// loopback, so the transport is not encrypted.
func Dial(_ context.Context, address string, opts ...Option) (*Client, error) {
	if address == "" {
		return nil, errAddressRequired
	}

	conn, err := grpc.NewClient(address,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(CodecName)),
		grpc.WithUserAgent(version.UserAgent()),
	)
	if err != nil {
		return nil, fmt.Errorf("dial daemon: %w", err)
	}

	client := &Client{
		conn:        conn,
		callTimeout: config.DefaultTimeout,
	}

	for _, opt := range opts {
		opt(client)
	}

	return client, nil
}

// Close releases the underlying gRPC connection.
func (c *Client) Close() error {
	if c == nil || c.conn == nil {
		return nil
	}

	return c.conn.Close()
}

// ListRules returns every rule with its next occurrence.
func (c *Client) ListRules(ctx context.Context) ([]RuleView, error) {
	var out RuleList
	if err := c.invoke(ctx, MethodListRules, &Empty{}, &out); err != nil {
		return nil, fmt.Errorf("list rules: %w", err)
	}

	return out.Rules, nil
}

// GetRule returns one rule.
func (c *Client) GetRule(ctx context.Context, id string) (*alert.Rule, error) {
	out := new(alert.Rule)
	if err := c.invoke(ctx, MethodGetRule, &RuleRef{ID: id}, out); err != nil {
		return nil, fmt.Errorf("get rule: %w", err)
	}

	return out, nil
}

// CreateRule stores a new rule and returns it as saved.
func (c *Client) CreateRule(ctx context.Context, rule *alert.Rule) (*alert.Rule, error) {
	out := new(alert.Rule)
	if err := c.invoke(ctx, MethodCreateRule, &RuleRequest{Rule: rule}, out); err != nil {
		return nil, fmt.Errorf("create rule: %w", err)
	}

	return out, nil
}

// UpdateRule replaces an existing rule.
func (c *Client) UpdateRule(ctx context.Context, rule *alert.Rule) (*alert.Rule, error) {
	out := new(alert.Rule)
	if err := c.invoke(ctx, MethodUpdateRule, &RuleRequest{Rule: rule}, out); err != nil {
		return nil, fmt.Errorf("update rule: %w", err)
	}

	return out, nil
}

// SetRuleEnabled enables or disables a rule.
func (c *Client) SetRuleEnabled(ctx context.Context, id string, enabled bool) (*alert.Rule, error) {
	out := new(alert.Rule)

	err := c.invoke(ctx, MethodSetRuleEnabled, &SetEnabledRequest{ID: id, Enabled: enabled}, out)
	if err != nil {
		return nil, fmt.Errorf("set rule enabled: %w", err)
	}

	return out, nil
}

// DeleteRule removes a rule.
func (c *Client) DeleteRule(ctx context.Context, id string) error {
	if err := c.invoke(ctx, MethodDeleteRule, &RuleRef{ID: id}, &Empty{}); err != nil {
		return fmt.Errorf("delete rule: %w", err)
	}

	return nil
}

// ListSessions returns the live overlays.
func (c *Client) ListSessions(ctx context.Context) ([]alert.Session, error) {
	var out SessionList
	if err := c.invoke(ctx, MethodListSessions, &Empty{}, &out); err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}

	return out.Sessions, nil
}

// Stop stops the overlay of ruleID.
func (c *Client) Stop(ctx context.Context, ruleID string) (*CommandResult, error) {
	return c.command(ctx, MethodStop, &RuleRef{ID: ruleID})
}

// Delay hides the overlay of ruleID for d.
func (c *Client) Delay(ctx context.Context, ruleID string, d time.Duration) (*CommandResult, error) {
	return c.command(ctx, MethodDelay, &DelayRequest{ID: ruleID, Delay: d})
}

// StopAll stops every overlay.
func (c *Client) StopAll(ctx context.Context) (*CommandResult, error) {
	return c.command(ctx, MethodStopAll, &Empty{})
}

// DelayAll hides every visible overlay for d.
func (c *Client) DelayAll(ctx context.Context, d time.Duration) (*CommandResult, error) {
	return c.command(ctx, MethodDelayAll, &DelayRequest{Delay: d})
}

// TestFire shows the overlay of ruleID right away.
func (c *Client) TestFire(ctx context.Context, ruleID string) (*CommandResult, error) {
	return c.command(ctx, MethodTestFire, &RuleRef{ID: ruleID})
}

// Status describes the daemon.
func (c *Client) Status(ctx context.Context) (*Status, error) {
	out := new(Status)
	if err := c.invoke(ctx, MethodStatus, &Empty{}, out); err != nil {
		return nil, fmt.Errorf("get status: %w", err)
	}

	return out, nil
}

// Shutdown asks the daemon to exit.
func (c *Client) Shutdown(ctx context.Context) error {
	if err := c.invoke(ctx, MethodShutdown, &Empty{}, &Empty{}); err != nil {
		return fmt.Errorf("shutdown daemon: %w", err)
	}

	return nil
}

// Watch calls fn for every session transition until ctx is canceled, the
// daemon closes the stream or fn returns an error. The call timeout does not
// apply to the stream.
func (c *Client) Watch(ctx context.Context, fn func(alert.Event) error) error {
	stream, err := c.conn.NewStream(ctx, &serviceDesc.Streams[0], fullMethod(MethodWatch))
	if err != nil {
		return fmt.Errorf("open watch stream: %w", err)
	}

	if err = stream.SendMsg(&Empty{}); err != nil {
		return fmt.Errorf("send watch request: %w", err)
	}

	if err = stream.CloseSend(); err != nil {
		return fmt.Errorf("close watch request: %w", err)
	}

	for {
		var ev alert.Event

		err = stream.RecvMsg(&ev)
		if errors.Is(err, io.EOF) {
			return nil
		}

		if err != nil {
			return fmt.Errorf("receive event: %w", err)
		}

		if err = fn(ev); err != nil {
			return err
		}
	}
}

func (c *Client) command(ctx context.Context, method string, in any) (*CommandResult, error) {
	out := new(CommandResult)
	if err := c.invoke(ctx, method, in, out); err != nil {
		return nil, fmt.Errorf("%s: %w", method, err)
	}

	return out, nil
}

func (c *Client) invoke(ctx context.Context, method string, in, out any) error {
	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	return c.conn.Invoke(callCtx, fullMethod(method), in, out)
}

// callContext returns a context with the client's call timeout if configured,
// otherwise a cancellable child context without a deadline.
func (c *Client) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.callTimeout <= 0 {
		return context.WithCancel(ctx)
	}

	return context.WithTimeout(ctx, c.callTimeout)
}
