package control

import (
	"context"
	"errors"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/oshokin/gentle-alert/internal/domain/alert"
	"github.com/oshokin/gentle-alert/internal/logger"
	"github.com/oshokin/gentle-alert/internal/service/scheduler"
	"github.com/oshokin/gentle-alert/internal/store"
)

// Service abstracts the business operations the transport layer depends on.
type Service interface {
	ListRules(ctx context.Context) []RuleView
	GetRule(ctx context.Context, id string) (*alert.Rule, error)
	CreateRule(ctx context.Context, rule *alert.Rule) (*alert.Rule, error)
	UpdateRule(ctx context.Context, rule *alert.Rule) (*alert.Rule, error)
	SetRuleEnabled(ctx context.Context, id string, enabled bool) (*alert.Rule, error)
	DeleteRule(ctx context.Context, id string) error
	Sessions(ctx context.Context) []alert.Session
	Stop(ctx context.Context, ruleID string) (bool, error)
	Delay(ctx context.Context, ruleID string, d time.Duration) (bool, error)
	StopAll(ctx context.Context) (int, error)
	DelayAll(ctx context.Context, d time.Duration) (int, error)
	TestFire(ctx context.Context, ruleID string) (bool, error)
	Status(ctx context.Context) *Status
	Subscribe() (<-chan alert.Event, func())
	Shutdown(ctx context.Context)
}

// Server implements ControlService.
type Server struct {
	// service provides the business logic behind every call.
	service Service
}

// NewServer wires the provided service implementation into a gRPC handler.
func NewServer(service Service) *Server {
	return &Server{
		service: service,
	}
}

// ListRules returns every rule with its next occurrence.
func (s *Server) ListRules(ctx context.Context, _ *Empty) (*RuleList, error) {
	return &RuleList{Rules: s.service.ListRules(ctx)}, nil
}

// GetRule returns one rule.
func (s *Server) GetRule(ctx context.Context, req *RuleRef) (*alert.Rule, error) {
	if err := requireID(req); err != nil {
		return nil, err
	}

	rule, err := s.service.GetRule(ctx, req.ID)
	if err != nil {
		return nil, toStatus(ctx, err)
	}

	return rule, nil
}

// CreateRule validates and stores a new rule.
func (s *Server) CreateRule(ctx context.Context, req *RuleRequest) (*alert.Rule, error) {
	if req == nil || req.Rule == nil {
		return nil, status.Error(codes.InvalidArgument, "rule is required")
	}

	rule, err := s.service.CreateRule(ctx, req.Rule)
	if err != nil {
		return nil, toStatus(ctx, err)
	}

	return rule, nil
}

// UpdateRule replaces an existing rule.
func (s *Server) UpdateRule(ctx context.Context, req *RuleRequest) (*alert.Rule, error) {
	if req == nil || req.Rule == nil || req.Rule.ID == "" {
		return nil, status.Error(codes.InvalidArgument, "rule with id is required")
	}

	rule, err := s.service.UpdateRule(ctx, req.Rule)
	if err != nil {
		return nil, toStatus(ctx, err)
	}

	return rule, nil
}

// SetRuleEnabled enables or disables a rule.
func (s *Server) SetRuleEnabled(ctx context.Context, req *SetEnabledRequest) (*alert.Rule, error) {
	if req == nil || req.ID == "" {
		return nil, status.Error(codes.InvalidArgument, "rule id is required")
	}

	rule, err := s.service.SetRuleEnabled(ctx, req.ID, req.Enabled)
	if err != nil {
		return nil, toStatus(ctx, err)
	}

	return rule, nil
}

// DeleteRule removes a rule and cancels its overlay.
func (s *Server) DeleteRule(ctx context.Context, req *RuleRef) (*Empty, error) {
	if err := requireID(req); err != nil {
		return nil, err
	}

	if err := s.service.DeleteRule(ctx, req.ID); err != nil {
		return nil, toStatus(ctx, err)
	}

	return &Empty{}, nil
}

// ListSessions returns the live overlays.
func (s *Server) ListSessions(ctx context.Context, _ *Empty) (*SessionList, error) {
	return &SessionList{Sessions: s.service.Sessions(ctx)}, nil
}

// Stop stops the overlay of one rule.
func (s *Server) Stop(ctx context.Context, req *RuleRef) (*CommandResult, error) {
	if err := requireID(req); err != nil {
		return nil, err
	}

	applied, err := s.service.Stop(ctx, req.ID)
	if err != nil {
		return nil, toStatus(ctx, err)
	}

	return appliedResult(applied), nil
}

// Delay hides the overlay of one rule.
func (s *Server) Delay(ctx context.Context, req *DelayRequest) (*CommandResult, error) {
	if req == nil || req.ID == "" {
		return nil, status.Error(codes.InvalidArgument, "rule id is required")
	}

	applied, err := s.service.Delay(ctx, req.ID, req.Delay)
	if err != nil {
		return nil, toStatus(ctx, err)
	}

	return appliedResult(applied), nil
}

// StopAll stops every overlay.
func (s *Server) StopAll(ctx context.Context, _ *Empty) (*CommandResult, error) {
	affected, err := s.service.StopAll(ctx)
	if err != nil {
		return nil, toStatus(ctx, err)
	}

	return commandResult(affected), nil
}

// DelayAll hides every visible overlay.
func (s *Server) DelayAll(ctx context.Context, req *DelayRequest) (*CommandResult, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}

	affected, err := s.service.DelayAll(ctx, req.Delay)
	if err != nil {
		return nil, toStatus(ctx, err)
	}

	return commandResult(affected), nil
}

// TestFire starts an overlay for a rule right away.
func (s *Server) TestFire(ctx context.Context, req *RuleRef) (*CommandResult, error) {
	if err := requireID(req); err != nil {
		return nil, err
	}

	applied, err := s.service.TestFire(ctx, req.ID)
	if err != nil {
		return nil, toStatus(ctx, err)
	}

	return appliedResult(applied), nil
}

// Status describes the daemon.
func (s *Server) Status(ctx context.Context, _ *Empty) (*Status, error) {
	return s.service.Status(ctx), nil
}

// Shutdown asks the daemon to exit.
func (s *Server) Shutdown(ctx context.Context, _ *Empty) (*Empty, error) {
	s.service.Shutdown(ctx)

	return &Empty{}, nil
}

// Watch streams session transitions until the client goes away.
func (s *Server) Watch(_ *Empty, stream WatchStream) error {
	ctx := logger.WithName(stream.Context(), "watch")

	events, cancel := s.service.Subscribe()
	defer cancel()

	logger.DebugKV(ctx, "Watcher connected")

	for {
		select {
		case <-ctx.Done():
			logger.DebugKV(ctx, "Watcher disconnected")

			return nil
		case ev, ok := <-events:
			if !ok {
				return status.Error(codes.Unavailable, "daemon is shutting down")
			}

			if err := stream.Send(&ev); err != nil {
				return err
			}
		}
	}
}

func requireID(req *RuleRef) error {
	if req == nil || req.ID == "" {
		return status.Error(codes.InvalidArgument, "rule id is required")
	}

	return nil
}

// toStatus maps domain errors to gRPC status codes.
func toStatus(ctx context.Context, err error) error {
	var code codes.Code

	switch {
	case errors.Is(err, alert.ErrInvalid), errors.Is(err, alert.ErrInvalidDelay):
		code = codes.InvalidArgument
	case errors.Is(err, store.ErrNotFound):
		code = codes.NotFound
	case errors.Is(err, store.ErrAlreadyExists):
		code = codes.AlreadyExists
	case errors.Is(err, scheduler.ErrStopped):
		code = codes.Unavailable
	case errors.Is(err, context.DeadlineExceeded):
		code = codes.DeadlineExceeded
	case errors.Is(err, context.Canceled):
		code = codes.Canceled
	default:
		logger.ErrorKV(ctx, "Control call failed", "error", err)

		return status.Error(codes.Internal, "internal error")
	}

	return status.Error(code, err.Error())
}
