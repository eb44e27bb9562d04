package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/ppiankov/grievance/internal/model"
	"github.com/ppiankov/grievance/internal/pipeline"
	"github.com/ppiankov/grievance/internal/score"
	"go.uber.org/zap"
)

// Pipeline is the subset of the grievance pipeline the HTTP surface uses
type Pipeline interface {
	Intake(ctx context.Context, transcript string) *pipeline.IntakeResult
	SubmitTranscript(ctx context.Context, transcript string) (*model.Outcome, error)
	SubmitGrievance(ctx context.Context, g model.Grievance) (*model.Outcome, error)
	Score(ctx context.Context) (*score.Report, error)
	Cases(ctx context.Context) ([]model.Case, error)
	Case(ctx context.Context, id string) (*model.Case, error)
}

// Server exposes the pipeline over HTTP
type Server struct {
	Echo     *echo.Echo
	pipeline Pipeline
	logger   *zap.Logger
}

// NewServer creates a server with routes registered
func NewServer(p Pipeline, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:   true,
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			fields := []zap.Field{
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
			}
			if v.Error != nil {
				logger.Warn("request failed", append(fields, zap.Error(v.Error))...)
				return nil
			}
			logger.Debug("request", fields...)
			return nil
		},
	}))

	s := &Server{Echo: e, pipeline: p, logger: logger}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.Echo.GET("/healthz", s.handleHealth)

	api := s.Echo.Group("/v1")
	api.POST("/intake", s.handleIntake)
	api.POST("/grievances", s.handleSubmit)
	api.POST("/score", s.handleScore)
	api.GET("/cases", s.handleListCases)
	api.GET("/cases/:id", s.handleGetCase)
}

// Start serves on addr until ctx is cancelled, then shuts down gracefully
func (s *Server) Start(ctx context.Context, addr string) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", zap.String("addr", addr))
		if err := s.Echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.Echo.Shutdown(shutdownCtx)
}

type transcriptRequest struct {
	Transcript string `json:"transcript"`
}

// submitRequest carries either a raw transcript or a structured grievance
type submitRequest struct {
	Transcript string           `json:"transcript"`
	Grievance  *model.Grievance `json:"grievance"`
}

type errorResponse struct {
	Error  string             `json:"error"`
	Reason model.RejectReason `json:"reason,omitempty"`
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleIntake(c echo.Context) error {
	var req transcriptRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request"})
	}
	if strings.TrimSpace(req.Transcript) == "" {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "transcript is required"})
	}

	return c.JSON(http.StatusOK, s.pipeline.Intake(c.Request().Context(), req.Transcript))
}

func (s *Server) handleSubmit(c echo.Context) error {
	var req submitRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request"})
	}

	ctx := c.Request().Context()
	var (
		out *model.Outcome
		err error
	)
	switch {
	case req.Grievance != nil:
		out, err = s.pipeline.SubmitGrievance(ctx, *req.Grievance)
	case strings.TrimSpace(req.Transcript) != "":
		out, err = s.pipeline.SubmitTranscript(ctx, req.Transcript)
	default:
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "transcript or grievance is required"})
	}
	if err != nil {
		return s.fail(c, err)
	}

	return c.JSON(outcomeStatus(out.Status), out)
}

func (s *Server) handleScore(c echo.Context) error {
	report, err := s.pipeline.Score(c.Request().Context())
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, report)
}

func (s *Server) handleListCases(c echo.Context) error {
	cases, err := s.pipeline.Cases(c.Request().Context())
	if err != nil {
		return s.fail(c, err)
	}

	f := caseFilter{
		Status:   c.QueryParam("status"),
		Priority: c.QueryParam("priority"),
		Category: c.QueryParam("category"),
		Location: c.QueryParam("location"),
	}
	filtered := make([]model.Case, 0, len(cases))
	for _, cs := range cases {
		if f.matches(cs) {
			filtered = append(filtered, cs)
		}
	}
	return c.JSON(http.StatusOK, filtered)
}

func (s *Server) handleGetCase(c echo.Context) error {
	cs, err := s.pipeline.Case(c.Request().Context(), c.Param("id"))
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, cs)
}

// fail maps pipeline errors to status codes
func (s *Server) fail(c echo.Context, err error) error {
	code := http.StatusInternalServerError
	resp := errorResponse{Error: err.Error()}

	var rej *model.RejectionError
	switch {
	case errors.Is(err, pipeline.ErrCaseNotFound):
		code = http.StatusNotFound
	case errors.As(err, &rej):
		code = http.StatusUnprocessableEntity
		resp.Reason = rej.Reason
	case errors.Is(err, model.ErrInvalidRecord):
		code = http.StatusBadRequest
	case errors.Is(err, model.ErrPersistenceConflict):
		code = http.StatusConflict
	case errors.Is(err, model.ErrProviderUnavailable):
		code = http.StatusServiceUnavailable
	}

	if code >= http.StatusInternalServerError {
		s.logger.Error("request failed", zap.String("path", c.Path()), zap.Error(err))
	}
	return c.JSON(code, resp)
}

func outcomeStatus(status model.OutcomeStatus) int {
	switch status {
	case model.OutcomeCreated:
		return http.StatusCreated
	case model.OutcomeRejected:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusOK
	}
}

type caseFilter struct {
	Status   string
	Priority string
	Category string
	Location string
}

func (f caseFilter) matches(c model.Case) bool {
	if f.Status != "" && !strings.EqualFold(string(c.Status), f.Status) {
		return false
	}
	if f.Priority != "" && !strings.EqualFold(string(c.Priority), f.Priority) {
		return false
	}
	if f.Category != "" && !strings.EqualFold(c.Category, f.Category) {
		return false
	}
	if f.Location != "" && model.NormalizeLocation(c.Location) != model.NormalizeLocation(f.Location) {
		return false
	}
	return true
}
