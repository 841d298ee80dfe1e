// Package dashboard serves the published snapshot read-only over HTTP.
package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"clawdash/config"
	"clawdash/internal/metrics"
	"clawdash/logger"
	"clawdash/models"
)

// errNoSnapshot means nothing has been published yet.
var errNoSnapshot = errors.New("snapshot not available")

// MachineSampler takes a live host sample for /api/system?live=true.
type MachineSampler interface {
	Collect(ctx context.Context) (models.MachineHealth, error)
}

// Server exposes the snapshot file, recent logs and Prometheus metrics.
type Server struct {
	addr         string
	snapshotPath string
	log          *logger.Log
	logStore     *logStore
	live         MachineSampler
	httpServer   *http.Server
	readFile     func(string) ([]byte, error)
}

// NewServer attaches a log capture hook to log. live may be nil.
func NewServer(cfg config.ServerConfig, snapshotPath string, log *logger.Log, live MachineSampler) *Server {
	if log == nil {
		log = logger.GetLogger()
	}
	store := newLogStore(cfg.LogBuffer)
	log.AddHook(store)

	return &Server{
		addr:         normalizeAddress(cfg.Addr),
		snapshotPath: snapshotPath,
		log:          log,
		logStore:     store,
		live:         live,
		readFile:     os.ReadFile,
	}
}

// Address reports the network address the server listens on.
func (s *Server) Address() string {
	return s.addr
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	defer s.logStore.close()

	s.httpServer = &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	s.log.WithComponent("dashboard").WithFields(logger.Fields{
		"addr":     s.addr,
		"snapshot": s.snapshotPath,
	}).Info("dashboard listening")

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		<-errCh
		return nil
	case err := <-errCh:
		return err
	}
}

// Handler builds the gin router.
func (s *Server) Handler() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), observe)

	api := router.Group("/api")
	api.GET("/snapshot", s.handleSnapshot)
	api.GET("/positions", s.section(func(snap *models.DashboardSnapshot) any { return snap.Positions }))
	api.GET("/bots", s.section(func(snap *models.DashboardSnapshot) any { return snap.Bots }))
	api.GET("/sessions", s.section(func(snap *models.DashboardSnapshot) any { return snap.Sessions }))
	api.GET("/system", s.handleSystem)
	api.GET("/logs", s.handleLogs)

	router.GET("/healthz", s.handleHealth)
	router.GET("/metrics", gin.WrapH(metrics.Handler()))
	return router
}

func observe(c *gin.Context) {
	c.Next()
	path := c.FullPath()
	if path == "" {
		path = "unmatched"
	}
	metrics.ObserveRequest(path, c.Writer.Status())
}

func (s *Server) handleSnapshot(c *gin.Context) {
	raw, _, err := s.load()
	if err != nil {
		s.fail(c, err)
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", raw)
}

func (s *Server) section(pick func(*models.DashboardSnapshot) any) gin.HandlerFunc {
	return func(c *gin.Context) {
		_, snap, err := s.load()
		if err != nil {
			s.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, pick(snap))
	}
}

func (s *Server) handleSystem(c *gin.Context) {
	if c.Query("live") == "true" && s.live != nil {
		health, err := s.live.Collect(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, health)
		return
	}

	_, snap, err := s.load()
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, snap.Machine)
}

func (s *Server) handleLogs(c *gin.Context) {
	level := logrus.TraceLevel
	if raw := c.Query("level"); raw != "" {
		parsed, err := logrus.ParseLevel(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid level %q", raw)})
			return
		}
		level = parsed
	}
	c.JSON(http.StatusOK, gin.H{"logs": s.logStore.snapshot(level)})
}

func (s *Server) handleHealth(c *gin.Context) {
	_, snap, err := s.load()
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
		return
	}
	body := gin.H{"status": "ok", "timestamp": snap.Timestamp}
	if ts, err := time.Parse(time.RFC3339, snap.Timestamp); err == nil {
		body["ageSeconds"] = int64(time.Since(ts).Seconds())
	}
	c.JSON(http.StatusOK, body)
}

// load reads the published file on every request so a new run is visible
// immediately.
func (s *Server) load() ([]byte, *models.DashboardSnapshot, error) {
	raw, err := s.readFile(s.snapshotPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil, errNoSnapshot
		}
		return nil, nil, fmt.Errorf("read snapshot: %w", err)
	}
	var snap models.DashboardSnapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return raw, &snap, nil
}

func (s *Server) fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, errNoSnapshot) {
		status = http.StatusServiceUnavailable
	} else {
		s.log.WithComponent("dashboard").WithError(err).Warn("failed to serve snapshot")
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func normalizeAddress(addr string) string {
	addr = strings.TrimSpace(addr)

	if addr == "" {
		return "0.0.0.0:8080"
	}

	if strings.Contains(addr, "://") {
		if parsed, err := url.Parse(addr); err == nil {
			if host := parsed.Host; host != "" {
				addr = host
			} else if parsed.Opaque != "" {
				addr = parsed.Opaque
			}
		}
	}

	if strings.HasPrefix(addr, ":") {
		if len(addr) > 1 && addr[1] >= '0' && addr[1] <= '9' {
			return "0.0.0.0" + addr
		}
	}

	host, port, err := net.SplitHostPort(addr)
	if err == nil {
		if host == "" || host == "*" {
			host = "0.0.0.0"
		}
		if port == "" {
			port = "8080"
		}
		return net.JoinHostPort(host, port)
	}

	if ip := net.ParseIP(addr); ip != nil {
		return net.JoinHostPort(addr, "8080")
	}

	if !strings.Contains(addr, ":") {
		return net.JoinHostPort(addr, "8080")
	}

	return addr
}
