// Package server exposes the planning engine over HTTP: start and resume
// runs, stream node events, apply what-if deltas, pick bundles, and fetch
// shared trips.
package server

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	oteltrace "go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/yashagarwalkdu25/Insufficient-Tokens-sub000/internal/config"
	"github.com/yashagarwalkdu25/Insufficient-Tokens-sub000/internal/engine"
	"github.com/yashagarwalkdu25/Insufficient-Tokens-sub000/internal/graph"
	"github.com/yashagarwalkdu25/Insufficient-Tokens-sub000/internal/state"
)

// Planner is the slice of the engine the HTTP layer depends on.
type Planner interface {
	Run(ctx context.Context, sessionID, userID, query string, emit graph.EmitFunc) (*state.PlannerState, error)
	Resume(ctx context.Context, sessionID string, approved bool, feedback string, emit graph.EmitFunc) (*state.PlannerState, error)
	ApplyWhatIf(ctx context.Context, sessionID string, deltaINR float64, emit graph.EmitFunc) (*state.PlannerState, error)
	SelectBundle(ctx context.Context, sessionID, bundleID string, emit graph.EmitFunc) (*state.PlannerState, error)
	Share(ctx context.Context, sessionID string) (string, error)
	Shared(ctx context.Context, tripID string) (*state.PlannerState, error)
	State(ctx context.Context, sessionID string) (*state.PlannerState, error)
}

// Server wraps the Fiber app around a planner.
type Server struct {
	app     *fiber.App
	planner Planner
	log     *zap.Logger
	tracer  oteltrace.Tracer
	addr    string
}

// New builds the HTTP server. cfg may be nil for defaults.
func New(planner Planner, cfg *config.Settings, logger *zap.Logger) *Server {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		planner: planner,
		log:     logger.Named("http"),
		addr:    cfg.ServerListenAddr,
	}
	if !cfg.DisableTracing {
		s.tracer = otel.Tracer("tripplanner/server")
	}

	app := fiber.New(fiber.Config{
		AppName:               "tripplanner",
		DisableStartupMessage: true,
		ErrorHandler:          s.errorHandler,
	})
	app.Use(s.observe)

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	v1 := app.Group("/api/v1")
	v1.Post("/runs", s.handleRun)
	v1.Get("/runs/:id", s.handleState)
	v1.Post("/runs/:id/resume", s.handleResume)
	v1.Post("/runs/:id/what-if", s.handleWhatIf)
	v1.Post("/runs/:id/bundle", s.handleBundle)
	v1.Post("/runs/:id/share", s.handleShare)
	v1.Get("/shared/:tripID", s.handleShared)

	s.app = app
	return s
}

// App exposes the underlying Fiber app, used by tests.
func (s *Server) App() *fiber.App { return s.app }

// Listen serves until the listener fails or Shutdown is called.
func (s *Server) Listen() error {
	s.log.Info("listening", zap.String("addr", s.addr))
	return s.app.Listen(s.addr)
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

// observe logs every request and, when tracing is on, wraps it in a span.
func (s *Server) observe(c *fiber.Ctx) error {
	started := time.Now()
	if s.tracer != nil {
		ctx, span := s.tracer.Start(c.UserContext(), c.Method()+" "+c.Path())
		defer span.End()
		c.SetUserContext(ctx)
		span.SetAttributes(
			attribute.String("http.method", c.Method()),
			attribute.String("http.target", c.Path()),
		)
	}
	err := c.Next()
	s.log.Info("request",
		zap.String("method", c.Method()),
		zap.String("path", c.Path()),
		zap.Int("status", c.Response().StatusCode()),
		zap.Duration("took", time.Since(started)))
	return err
}

func (s *Server) errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	switch {
	case errors.Is(err, engine.ErrNoSession):
		code = fiber.StatusNotFound
	case errors.Is(err, engine.ErrNotSuspended),
		errors.Is(err, engine.ErrUnknownBundle),
		errors.Is(err, engine.ErrNotNegotiated),
		errors.Is(err, engine.ErrNoTrip),
		errors.Is(err, engine.ErrNoDestination):
		code = fiber.StatusConflict
	}
	return c.Status(code).JSON(fiber.Map{"error": err.Error()})
}

type runRequest struct {
	SessionID string `json:"session_id"`
	UserID    string `json:"user_id"`
	Query     string `json:"query"`
	Stream    bool   `json:"stream"`
}

func (s *Server) handleRun(c *fiber.Ctx) error {
	var req runRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "malformed request body")
	}
	if req.Query == "" {
		return fiber.NewError(fiber.StatusBadRequest, "query is required")
	}
	if req.Stream {
		return s.stream(c, func(ctx context.Context, emit graph.EmitFunc) (*state.PlannerState, error) {
			return s.planner.Run(ctx, req.SessionID, req.UserID, req.Query, emit)
		})
	}
	st, err := s.planner.Run(c.UserContext(), req.SessionID, req.UserID, req.Query, nil)
	if err != nil {
		return err
	}
	return c.JSON(runResponse(st))
}

type resumeRequest struct {
	Approved bool   `json:"approved"`
	Feedback string `json:"feedback"`
	Stream   bool   `json:"stream"`
}

func (s *Server) handleResume(c *fiber.Ctx) error {
	id := c.Params("id")
	var req resumeRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "malformed request body")
	}
	if req.Stream {
		return s.stream(c, func(ctx context.Context, emit graph.EmitFunc) (*state.PlannerState, error) {
			return s.planner.Resume(ctx, id, req.Approved, req.Feedback, emit)
		})
	}
	st, err := s.planner.Resume(c.UserContext(), id, req.Approved, req.Feedback, nil)
	if err != nil {
		return err
	}
	return c.JSON(runResponse(st))
}

type whatIfRequest struct {
	DeltaINR float64 `json:"delta_inr"`
}

func (s *Server) handleWhatIf(c *fiber.Ctx) error {
	var req whatIfRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "malformed request body")
	}
	st, err := s.planner.ApplyWhatIf(c.UserContext(), c.Params("id"), req.DeltaINR, nil)
	if err != nil {
		return err
	}
	return c.JSON(runResponse(st))
}

type bundleRequest struct {
	BundleID string `json:"bundle_id"`
}

func (s *Server) handleBundle(c *fiber.Ctx) error {
	var req bundleRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "malformed request body")
	}
	if req.BundleID == "" {
		return fiber.NewError(fiber.StatusBadRequest, "bundle_id is required")
	}
	st, err := s.planner.SelectBundle(c.UserContext(), c.Params("id"), req.BundleID, nil)
	if err != nil {
		return err
	}
	return c.JSON(runResponse(st))
}

func (s *Server) handleShare(c *fiber.Ctx) error {
	tripID, err := s.planner.Share(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"trip_id": tripID, "url": "/api/v1/shared/" + tripID})
}

func (s *Server) handleShared(c *fiber.Ctx) error {
	st, err := s.planner.Shared(c.UserContext(), c.Params("tripID"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"trip": st.Trip, "vibe_score": st.VibeScore, "weather": st.Weather})
}

func (s *Server) handleState(c *fiber.Ctx) error {
	st, err := s.planner.State(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(runResponse(st))
}

// runResponse is the session envelope every mutating endpoint returns.
func runResponse(st *state.PlannerState) fiber.Map {
	return fiber.Map{
		"session_id":        st.SessionID,
		"current_stage":     st.CurrentStage,
		"requires_approval": st.RequiresApproval,
		"approval_type":     st.ApprovalType,
		"state":             st,
	}
}

// stream runs one engine segment while relaying node events as SSE frames,
// ending with a "done" frame carrying the final session envelope.
func (s *Server) stream(c *fiber.Ctx, run func(ctx context.Context, emit graph.EmitFunc) (*state.PlannerState, error)) error {
	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set("Connection", "keep-alive")

	// The stream writer runs after this handler returns, so it must not hold
	// the request context.
	ctx := context.Background()
	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		events := make(chan graph.Event, 16)
		done := make(chan struct{})
		var final *state.PlannerState
		var runErr error
		go func() {
			defer close(done)
			final, runErr = run(ctx, func(ev graph.Event) {
				events <- ev
			})
			close(events)
		}()

		for ev := range events {
			writeSSE(w, "node", fiber.Map{
				"node":  ev.Node,
				"stage": ev.State.CurrentStage,
			})
		}
		<-done
		if runErr != nil {
			writeSSE(w, "error", fiber.Map{"error": runErr.Error()})
			return
		}
		writeSSE(w, "done", runResponse(final))
	}))
	return nil
}

func writeSSE(w *bufio.Writer, event string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
	w.Flush()
}
