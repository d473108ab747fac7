package rest

import (
	"context"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/oshokin/gentle-alert/internal/api/grpc/control"
	"github.com/oshokin/gentle-alert/internal/clock"
	"github.com/oshokin/gentle-alert/internal/domain/alert"
)

const (
	// requestTimeout bounds every non-streaming request.
	requestTimeout = 15 * time.Second

	// DefaultHeartbeat is the idle interval between SSE keep-alive comments.
	DefaultHeartbeat = 15 * time.Second
)

// Service is the part of the daemon the HTTP API reads and commands.
type Service interface {
	ListRules(ctx context.Context) []control.RuleView
	GetRule(ctx context.Context, id string) (*alert.Rule, error)
	Sessions(ctx context.Context) []alert.Session
	Stop(ctx context.Context, ruleID string) (bool, error)
	Delay(ctx context.Context, ruleID string, d time.Duration) (bool, error)
	Subscribe() (<-chan alert.Event, func())
}

// Options configures the router.
type Options struct {
	// Service answers every request. Required.
	Service Service
	// Clock computes session progress. Defaults to the system clock.
	Clock clock.Clock
	// Heartbeat is the SSE keep-alive period. Defaults to DefaultHeartbeat.
	Heartbeat time.Duration
	// Location resolves wall-clock schedules in the calendar feed. Defaults to time.Local.
	Location *time.Location
}

// handler holds the dependencies of the HTTP handlers.
type handler struct {
	// service answers requests.
	service Service
	// clock supplies the instant progress is computed at.
	clock clock.Clock
	// heartbeat is the SSE keep-alive period.
	heartbeat time.Duration
	// location resolves calendar schedules.
	location *time.Location
}

// NewRouter builds the chi router of the HTTP API.
func NewRouter(opts Options) *chi.Mux {
	h := &handler{
		service:   opts.Service,
		clock:     opts.Clock,
		heartbeat: opts.Heartbeat,
		location:  opts.Location,
	}

	if h.clock == nil {
		h.clock = clock.Real{}
	}

	if h.heartbeat <= 0 {
		h.heartbeat = DefaultHeartbeat
	}

	if h.location == nil {
		h.location = time.Local
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", h.handleHealth)

	r.Route("/v1", func(r chi.Router) {
		// The event stream is long-lived and must not be cut by the timeout.
		r.Get("/events", h.handleEvents)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(requestTimeout))

			r.Get("/calendar.ics", h.handleCalendar)

			r.Get("/rules", h.handleListRules)
			r.Get("/rules/{ruleID}", h.handleGetRule)

			r.Get("/sessions", h.handleListSessions)
			r.Post("/sessions/{ruleID}/stop", h.handleStop)
			r.Post("/sessions/{ruleID}/delay", h.handleDelay)
		})
	})

	return r
}
