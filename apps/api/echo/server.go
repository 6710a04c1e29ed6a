package echoapi

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/Digital-Minimalist-Lab/30-day-cohorts-webapp/core"
	"github.com/Digital-Minimalist-Lab/30-day-cohorts-webapp/core/cohort"
	"github.com/Digital-Minimalist-Lab/30-day-cohorts-webapp/core/survey"
	"github.com/Digital-Minimalist-Lab/30-day-cohorts-webapp/core/user"
)

// ServerDeps are the dependencies the API server needs to operate.
type ServerDeps struct {
	Conf       *core.Config
	Logger     core.Logger
	UserSvc    user.Service
	CohortSvc  cohort.Service
	SurveySvc  survey.Service
	Validate   *validator.Validate
	Translator ut.Translator
}

// Server is the application's HTTP API server.
type Server struct {
	app      *echo.Echo
	deps     ServerDeps
	errors   chan error
	shutdown chan os.Signal
}

func NewServer(deps ServerDeps) *Server {
	srv := &Server{
		app:      echo.New(),
		deps:     deps,
		errors:   make(chan error, 1),
		shutdown: make(chan os.Signal, 1),
	}
	srv.setup()
	return srv
}

func (s *Server) setup() {
	conf := s.deps.Conf

	s.app.Pre(middleware.RemoveTrailingSlash())

	s.app.Use(middleware.RequestID())
	s.app.Use(middleware.Secure())
	cors := middleware.DefaultCORSConfig
	if conf.FrontendBaseURL != "" {
		cors.AllowOrigins = []string{conf.FrontendBaseURL}
	}
	s.app.Use(middleware.CORSWithConfig(cors))
	s.app.Use(middleware.BodyLimit("1M"))
	if !conf.TestMode {
		s.app.Use(middleware.Logger())
	}
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.Recover())
		s.app.Logger.SetLevel(log.ERROR)
	}

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.deps.Logger, s.SignalShutdown)
	s.app.Debug = conf.Debug

	s.app.GET("/", s.home)

	v1 := s.app.Group("/v1")
	jwt := middleware.JWTWithConfig(appJWTConfig)
	registerUserAPI(v1, jwt, s.deps)
	registerCohortAPI(v1, jwt, s.deps)
	registerSurveyAPI(v1, jwt, s.deps)
	registerDesignAPI(v1, jwt, s.deps)
}

func (s *Server) home(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, echo.Map{
		"app":   s.deps.Conf.AppName,
		"build": s.deps.Conf.Build,
	})
}

// Start runs the server; it blocks until the listener stops. The exit error
// is delivered on Errors().
func (s *Server) Start() {
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	s.errors <- s.app.Start(s.deps.Conf.Server.Host)
}

// Errors delivers the server's fatal listener error.
func (s *Server) Errors() <-chan error { return s.errors }

// ShutdownSignal delivers OS termination signals and internally requested
// shutdowns (see SignalShutdown).
func (s *Server) ShutdownSignal() <-chan os.Signal { return s.shutdown }

// SignalShutdown requests a graceful shutdown, used when a handler reports
// loss of integrity.
func (s *Server) SignalShutdown() { s.shutdown <- syscall.SIGTERM }

// Shutdown stops the server gracefully, waiting for in-flight requests until
// ctx expires.
func (s *Server) Shutdown(ctx context.Context) error { return s.app.Shutdown(ctx) }

// Close stops the server immediately.
func (s *Server) Close() error { return s.app.Close() }

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.app.ServeHTTP(w, r) } // for tests
