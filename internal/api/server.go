// Package api exposes the aggregated catalog view over HTTP.
package api

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"strconv"
	"time"

	"catalog-bff/internal/aggregator"
	"catalog-bff/internal/common/config"
	"catalog-bff/internal/common/errors"
	"catalog-bff/internal/common/logger"
	"catalog-bff/internal/common/metrics"
	"catalog-bff/internal/models"
	"catalog-bff/internal/session"
	"catalog-bff/internal/tier"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ReadinessCheck is probed by /ready.
type ReadinessCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

type Server struct {
	router   *mux.Router
	agg      *aggregator.Aggregator
	sessions *session.Manager
	cookie   config.SessionConfig
	checks   []ReadinessCheck
	logger   logger.Logger
}

func NewServer(
	agg *aggregator.Aggregator,
	sessions *session.Manager,
	sessionCfg config.SessionConfig,
	log logger.Logger,
	checks ...ReadinessCheck,
) *Server {
	s := &Server{
		router:   mux.NewRouter(),
		agg:      agg,
		sessions: sessions,
		cookie:   sessionCfg,
		checks:   checks,
		logger:   log.WithFields(map[string]interface{}{"component": "api"}),
	}

	s.router.Use(s.metricsMiddleware)
	s.router.HandleFunc("/catalog", s.handleCatalog).Methods(http.MethodGet)
	s.router.HandleFunc("/session", s.handleSession).Methods(http.MethodGet)
	s.router.HandleFunc("/logout", s.handleLogout).Methods(http.MethodPost)
	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/ready", s.handleReady).Methods(http.MethodGet)
	s.router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// HTTPServer wraps the router with the configured address and timeouts.
func (s *Server) HTTPServer(cfg config.ServerConfig) *http.Server {
	return &http.Server{
		Addr:         cfg.Address,
		Handler:      s.router,
		ReadTimeout:  config.GetDuration(cfg.ReadTimeout),
		WriteTimeout: config.GetDuration(cfg.WriteTimeout),
	}
}

type catalogResponse struct {
	Collections []models.Collection       `json:"collections"`
	Plans       []models.SubscriptionPlan `json:"plans"`
	User        *models.User              `json:"user"`
	ViewerTier  tier.Tier                 `json:"viewerTier"`
	Degraded    []string                  `json:"degraded"`
	CycleID     string                    `json:"cycleId"`
}

type sessionResponse struct {
	Authenticated bool         `json:"authenticated"`
	User          *models.User `json:"user"`
}

func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	sid, fresh := s.sessionID(r)
	sess := s.sessions.Establish(sid, s.credentials(r))

	view := aggregator.NewView(s.agg, sess)
	defer view.Close()

	if err := view.Load(r.Context()); err != nil {
		if stderrors.Is(err, errors.ErrCycleAbandoned) {
			s.logger.Info("Catalog request abandoned", map[string]interface{}{"sessionId": sid})
			return
		}
		msg := err.Error()
		if stdErr, ok := errors.AsStandardError(err); ok {
			msg = stdErr.Message
		}
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": msg})
		return
	}

	res, err := view.Result()
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	// Login rotates the id, so an authenticated session always gets the
	// cookie for the id it was saved under.
	if fresh || sess.Authenticated() {
		http.SetCookie(w, s.sessionCookie(sess.ID()))
	}
	writeJSON(w, http.StatusOK, catalogResponse{
		Collections: view.VisibleCollections(),
		Plans:       res.Plans,
		User:        res.User,
		ViewerTier:  sess.Tier(),
		Degraded:    res.Degraded,
		CycleID:     res.CycleID,
	})
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	c, err := r.Cookie(s.cookie.CookieName)
	if err != nil || c.Value == "" {
		writeJSON(w, http.StatusOK, sessionResponse{})
		return
	}

	sess, err := s.sessions.Resume(r.Context(), c.Value, s.credentials(r))
	if err != nil {
		s.logger.Error("Session resume failed", map[string]interface{}{"error": err.Error()})
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "session store unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{
		Authenticated: sess.Authenticated(),
		User:          sess.User(),
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(s.cookie.CookieName); err == nil && c.Value != "" {
		sess, err := s.sessions.Resume(r.Context(), c.Value, session.Credentials{})
		if err == nil {
			err = sess.Teardown(r.Context())
		}
		if err != nil {
			s.logger.Error("Session teardown failed", map[string]interface{}{
				"sessionId": c.Value,
				"error":     err.Error(),
			})
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "session store unavailable"})
			return
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     s.cookie.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	failed := map[string]string{}
	for _, c := range s.checks {
		if err := c.Check(ctx); err != nil {
			failed[c.Name] = err.Error()
		}
	}
	if len(failed) > 0 {
		writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status": "not ready",
			"checks": failed,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ready",
		"time":   time.Now().Format(time.RFC3339),
	})
}

// sessionID returns the request's session id, minting one when absent.
func (s *Server) sessionID(r *http.Request) (string, bool) {
	if c, err := r.Cookie(s.cookie.CookieName); err == nil && c.Value != "" {
		return c.Value, false
	}
	return s.sessions.NewSessionID(), true
}

// credentials collects what the auth check needs: every inbound cookie
// except the service's own session cookie, and the Authorization header.
func (s *Server) credentials(r *http.Request) session.Credentials {
	var cookies []*http.Cookie
	for _, c := range r.Cookies() {
		if c.Name != s.cookie.CookieName {
			cookies = append(cookies, c)
		}
	}
	return session.Credentials{
		Cookies:       cookies,
		Authorization: r.Header.Get("Authorization"),
	}
}

func (s *Server) sessionCookie(sid string) *http.Cookie {
	c := &http.Cookie{
		Name:     s.cookie.CookieName,
		Value:    sid,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	}
	if ttl := config.GetDuration(s.cookie.TTL); ttl > 0 {
		c.MaxAge = int(ttl / time.Second)
	}
	return c
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := "unmatched"
		if cr := mux.CurrentRoute(r); cr != nil {
			if tpl, err := cr.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		metrics.HTTPRequests.WithLabelValues(route, strconv.Itoa(rec.status)).Inc()
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
