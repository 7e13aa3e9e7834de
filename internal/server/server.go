// Package server exposes pipeline sessions over HTTP with echo.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/KaramelBytes/boxheat-cli/internal/analysis"
	"github.com/KaramelBytes/boxheat-cli/internal/clean"
	"github.com/KaramelBytes/boxheat-cli/internal/imagegen"
	"github.com/KaramelBytes/boxheat-cli/internal/render"
)

type config struct {
	logLevel       string
	silent         bool
	maxUpload      int64
	sessionTTL     time.Duration
	sweepInterval  time.Duration
	gracefulPeriod time.Duration
	render         render.Options
	strategy       clean.Strategy
	method         analysis.Method
	images         *imagegen.Client
	imageStyle     string
	debug          bool
}

func defaultConfig() config {
	return config{
		logLevel:       "info",
		maxUpload:      32 << 20,
		sessionTTL:     time.Hour,
		sweepInterval:  time.Minute,
		gracefulPeriod: 15 * time.Second,
		strategy:       clean.DropRows,
		method:         analysis.Pearson,
		imageStyle:     "Realistic",
	}
}

type Option func(*config) *config

// WithLogLevel sets echo's log level: debug, info, warn, error or off.
func WithLogLevel(level string) Option {
	return func(c *config) *config {
		c.logLevel = level
		return c
	}
}

// Silent hides echo's banner and port line.
func Silent() Option {
	return func(c *config) *config {
		c.silent = true
		return c
	}
}

// WithMaxUpload bounds the size of an uploaded file in bytes.
func WithMaxUpload(n int64) Option {
	return func(c *config) *config {
		if n > 0 {
			c.maxUpload = n
		}
		return c
	}
}

// WithSessionTTL sets how long an idle session survives. Zero disables eviction.
func WithSessionTTL(d time.Duration) Option {
	return func(c *config) *config {
		c.sessionTTL = d
		return c
	}
}

// WithGracefulPeriod sets how long Start waits for in-flight requests on shutdown.
func WithGracefulPeriod(d time.Duration) Option {
	return func(c *config) *config {
		c.gracefulPeriod = d
		return c
	}
}

// WithRenderOptions sets chart size and default colormap.
func WithRenderOptions(opt render.Options) Option {
	return func(c *config) *config {
		c.render = opt
		return c
	}
}

// WithDefaults sets the strategy and method used when a run request omits them.
func WithDefaults(s clean.Strategy, m analysis.Method) Option {
	return func(c *config) *config {
		if s != "" {
			c.strategy = s
		}
		if m != "" {
			c.method = m
		}
		return c
	}
}

// WithImageClient enables remote image generation. Without it /api/imagine only
// serves demo placeholders.
func WithImageClient(client *imagegen.Client, style string) Option {
	return func(c *config) *config {
		c.images = client
		if style != "" {
			c.imageStyle = style
		}
		return c
	}
}

// WithDebug routes pipeline stage details to the echo logger.
func WithDebug() Option {
	return func(c *config) *config {
		c.debug = true
		return c
	}
}

// Server is an echo instance wired to a session store.
type Server struct {
	Echo   *echo.Echo
	conf   config
	store  *store
	debugf func(format string, args ...any)
}

// New builds the server and registers every route.
func New(opts ...Option) *Server {
	conf := defaultConfig()
	for _, opt := range opts {
		conf = *opt(&conf)
	}
	e := echo.New()
	if conf.silent {
		e.HideBanner = true
		e.HidePort = true
	}
	setLogLevel(e, conf.logLevel)
	e.HTTPErrorHandler = errorHandler
	e.Use(middleware.Recover())
	e.Use(requestLog)

	s := &Server{Echo: e, conf: conf, store: newStore(conf.sessionTTL)}
	if conf.debug {
		s.debugf = e.Logger.Debugf
	}

	upload := middleware.BodyLimit(fmt.Sprintf("%dK", (conf.maxUpload+(64<<10))>>10))
	api := func(path string) string { return "/api/" + path }
	e.POST(api("sessions"), s.createSession, upload)
	e.GET(api("sessions/:id"), s.getSession)
	e.PUT(api("sessions/:id/file"), s.putFile, upload)
	e.POST(api("sessions/:id/run"), s.run)
	e.GET(api("sessions/:id/boxplot.png"), s.boxplot)
	e.GET(api("sessions/:id/heatmap.png"), s.heatmap)
	e.GET(api("sessions/:id/processed.csv"), s.processed)
	e.DELETE(api("sessions/:id"), s.deleteSession)
	e.POST(api("imagine"), s.imagine)
	return s
}

// ServeHTTP makes Server an http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.Echo.ServeHTTP(w, r)
}

// Start listens on addr until ctx is cancelled, then shuts down gracefully.
// Idle sessions are swept in the background while the server runs.
func (s *Server) Start(ctx context.Context, addr string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	if s.conf.sessionTTL > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ticker := time.NewTicker(s.conf.sweepInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					if n := s.store.Sweep(); n > 0 {
						s.Echo.Logger.Infof("evicted %d idle sessions", n)
					}
				}
			}
		}()
	}

	errCh := make(chan error, 1)
	go func() { errCh <- s.Echo.Start(addr) }()

	var err error
	select {
	case err = <-errCh:
	case <-ctx.Done():
		graceful, stop := context.WithTimeout(context.Background(), s.conf.gracefulPeriod)
		defer stop()
		err = s.Echo.Shutdown(graceful)
		if err != nil {
			s.Echo.Close()
		}
	}
	cancel()
	wg.Wait()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}
