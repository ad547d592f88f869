// Package monitor serves a read-only HTTP view of a running sweep: progress,
// points measured so far, a server-sent event stream and Prometheus metrics.
// It only observes the event hub and never touches the register bus.
package monitor

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/charlie0129/vcxoscan/pkg/events"
	"github.com/charlie0129/vcxoscan/pkg/metrics"
	"github.com/charlie0129/vcxoscan/pkg/version"
)

// Server is the monitor HTTP server.
type Server struct {
	addr    string
	hub     *events.EventHub
	tracker *Tracker
	srv     *http.Server
	ln      net.Listener
	sub     chan events.Event
	done    chan struct{}
	once    sync.Once
}

// New returns a monitor that will listen on addr and follow hub, which must
// not be nil.
func New(addr string, hub *events.EventHub) *Server {
	s := &Server{
		addr:    addr,
		hub:     hub,
		tracker: NewTracker(),
		done:    make(chan struct{}),
	}
	s.srv = &http.Server{Handler: s.routes()}
	return s
}

func (s *Server) routes() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(ginLogger(logrus.StandardLogger()))
	router.GET("/status", s.getStatus)
	router.GET("/result", s.getResult)
	router.GET("/events", s.getEvents)
	router.GET("/metrics", gin.WrapH(metrics.Handler()))
	router.GET("/version", getVersion)

	return router
}

// Tracker returns the snapshot the monitor serves.
func (s *Server) Tracker() *Tracker {
	return s.tracker
}

// Handler returns the HTTP handler of the monitor.
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}

// Addr returns the listen address, resolved once Start has been called.
func (s *Server) Addr() string {
	if s.ln != nil {
		return s.ln.Addr().String()
	}
	return s.addr
}

// Start subscribes to the hub and serves HTTP in the background.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to listen on %s", s.addr)
	}
	s.ln = ln

	s.sub = s.hub.Subscribe()
	go s.tracker.Run(s.sub)

	go func() {
		logrus.Infof("monitor listening on http://%s", ln.Addr().String())
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.WithError(err).Error("monitor server stopped")
		}
	}()
	return nil
}

// Shutdown ends open event streams, then stops the HTTP server and the hub
// subscription.
func (s *Server) Shutdown(ctx context.Context) error {
	s.once.Do(func() { close(s.done) })
	if s.sub != nil {
		s.hub.Unsubscribe(s.sub)
		s.sub = nil
	}
	return s.srv.Shutdown(ctx)
}

func (s *Server) getStatus(c *gin.Context) {
	c.IndentedJSON(http.StatusOK, s.tracker.Status())
}

func (s *Server) getResult(c *gin.Context) {
	st := s.tracker.Status()
	c.IndentedJSON(http.StatusOK, gin.H{
		"runId":  st.RunID,
		"phase":  st.Phase,
		"points": s.tracker.Points(),
	})
}

func (s *Server) getEvents(c *gin.Context) {
	ch := s.hub.Subscribe()
	defer s.hub.Unsubscribe(ch)

	c.Stream(func(w io.Writer) bool {
		select {
		case <-c.Request.Context().Done():
			return false
		case <-s.done:
			return false
		case ev, ok := <-ch:
			if !ok {
				return false
			}
			c.SSEvent(ev.Name, string(ev.Data))
			return true
		}
	})
}

func getVersion(c *gin.Context) {
	c.IndentedJSON(http.StatusOK, gin.H{
		"version": version.Version,
		"commit":  version.GitCommit,
	})
}
