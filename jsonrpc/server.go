package jsonrpc

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/creachadair/jrpc2"
	"github.com/creachadair/jrpc2/jhttp"
	"github.com/gorilla/mux"
	"github.com/mezonai/syncgate/errors"
	"github.com/mezonai/syncgate/exception"
	"github.com/mezonai/syncgate/interfaces"
	"github.com/mezonai/syncgate/jsonx"
	"github.com/mezonai/syncgate/logx"
	"github.com/mezonai/syncgate/monitoring"
	"github.com/mezonai/syncgate/ratelimit"
)

// maxBodyBytes bounds every request body; one transaction is far smaller.
const maxBodyBytes = 1 << 20

type CORSConfig struct {
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
	MaxAge         int
}

// Server exposes the router over HTTP:
//
//	POST /rpc              JSON-RPC 2.0, one method per message type
//	POST /api/v1/message   raw {type, data} envelope
//	POST /api/v1/tx        one transaction, local origin
//	GET  /health
//	GET  /metrics
type Server struct {
	addr       string
	router     *Router
	txSvc      interfaces.TxService
	health     interfaces.HealthService
	corsConfig CORSConfig
	limiter    *ratelimit.RateLimiter
	log        *logx.Logger

	closeBridge func() error
	httpServer  *http.Server
}

func NewServer(addr string, router *Router, txSvc interfaces.TxService, health interfaces.HealthService, log *logx.Logger) *Server {
	return &Server{
		addr:   addr,
		router: router,
		txSvc:  txSvc,
		health: health,
		log:    log,
		corsConfig: CORSConfig{
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Content-Type"},
		},
	}
}

// SetCORSConfig allows configuring CORS settings
func (s *Server) SetCORSConfig(config CORSConfig) {
	s.corsConfig = config
}

// SetRateLimiter limits submissions and RPC calls per client IP.
func (s *Server) SetRateLimiter(rl *ratelimit.RateLimiter) {
	s.limiter = rl
}

// Handler builds the HTTP handler. It must be called after every message
// type is registered on the router.
func (s *Server) Handler() http.Handler {
	bridge := jhttp.NewBridge(s.router.MethodMap(), &jhttp.BridgeOptions{Server: &jrpc2.ServerOptions{}})
	s.closeBridge = bridge.Close

	r := mux.NewRouter()
	r.Use(s.logRequest, s.cors)
	r.Handle("/rpc", s.rateLimit(bridge)).Methods(http.MethodPost)
	r.Handle("/api/v1/message", s.rateLimit(http.HandlerFunc(s.handleEnvelope))).Methods(http.MethodPost)
	r.Handle("/api/v1/tx", s.rateLimit(http.HandlerFunc(s.handlePostTx))).Methods(http.MethodPost)
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", monitoring.Handler()).Methods(http.MethodGet)
	r.Methods(http.MethodOptions).HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return r
}

// Start binds the listen address and serves in the background.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.addr, err)
	}
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.log.Info("RPC", "listening on ", ln.Addr().String())
	exception.SafeGo("rpc-server", func() {
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.log.Error("RPC", "server stopped: ", err)
		}
	})
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.limiter != nil {
		s.limiter.Stop()
	}
	if s.closeBridge != nil {
		defer s.closeBridge()
	}
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = jsonx.NewEncoder(w).Encode(v)
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "request body too large"})
		return nil, false
	}
	return body, true
}

func (s *Server) handlePostTx(w http.ResponseWriter, r *http.Request) {
	body, ok := readBody(w, r)
	if !ok {
		return
	}
	resp, err := s.txSvc.PostTx(r.Context(), body, interfaces.OriginLocal)
	if err != nil {
		s.log.Error("RPC", "post tx: ", err)
		writeJSON(w, http.StatusInternalServerError, &interfaces.PostTxResponse{Err: 1, Message: errors.ErrMsgInternal})
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleEnvelope(w http.ResponseWriter, r *http.Request) {
	body, ok := readBody(w, r)
	if !ok {
		return
	}
	res, err := s.router.DispatchJSON(r.Context(), body)
	if err != nil {
		var pe *paramsError
		switch {
		case errors.Is(err, errors.ErrUnknownMessageType):
			writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
		case errors.As(err, &pe), errors.Is(err, errors.ErrInvalidChunkSize):
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		default:
			s.log.Error("RPC", "dispatch: ", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": errors.ErrMsgInternal})
		}
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status, err := s.health.Check(r.Context())
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) logRequest(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.log.Debug("RPC", r.Method, " ", r.URL.Path, " from ", extractClientIPFromRequest(r))
		next.ServeHTTP(w, r)
	})
}

func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.limiter != nil {
			ip := extractClientIPFromRequest(r)
			allowed := s.limiter.Allow(ip)
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(s.limiter.Remaining(ip)))
			if !allowed {
				s.log.Warn("RPC", "rate limit exceeded for ", ip)
				writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "rate limit exceeded"})
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.setCORSHeaders(w, r)
		next.ServeHTTP(w, r)
	})
}

func (s *Server) setCORSHeaders(w http.ResponseWriter, r *http.Request) {
	if len(s.corsConfig.AllowedOrigins) > 0 {
		if s.corsConfig.AllowedOrigins[0] == "*" {
			w.Header().Set("Access-Control-Allow-Origin", "*")
		} else {
			origin := r.Header.Get("Origin")
			for _, allowedOrigin := range s.corsConfig.AllowedOrigins {
				if origin == allowedOrigin {
					w.Header().Set("Access-Control-Allow-Origin", origin)
					w.Header().Add("Vary", "Origin")
					break
				}
			}
		}
	}
	if len(s.corsConfig.AllowedMethods) > 0 {
		w.Header().Set("Access-Control-Allow-Methods", strings.Join(s.corsConfig.AllowedMethods, ", "))
	}
	if len(s.corsConfig.AllowedHeaders) > 0 {
		w.Header().Set("Access-Control-Allow-Headers", strings.Join(s.corsConfig.AllowedHeaders, ", "))
	}
	if s.corsConfig.MaxAge > 0 {
		w.Header().Set("Access-Control-Max-Age", strconv.Itoa(s.corsConfig.MaxAge))
	}
}

func extractClientIPFromRequest(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		ip := strings.TrimSpace(strings.Split(xff, ",")[0])
		if net.ParseIP(ip) != nil {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && net.ParseIP(host) != nil {
		return host
	}
	return "unknown"
}

// CORSFromEnv reads CORS overrides from the environment. It returns
// (cfg, true) if any of them is set.
//
// Env vars:
// - CORS_ALLOWED_ORIGINS: comma-separated list
// - CORS_ALLOWED_METHODS: comma-separated list
// - CORS_ALLOWED_HEADERS: comma-separated list
// - CORS_MAX_AGE: integer seconds
func CORSFromEnv() (CORSConfig, bool) {
	var maxAge int
	if v, err := strconv.Atoi(os.Getenv("CORS_MAX_AGE")); err == nil {
		maxAge = v
	}
	cfg := CORSConfig{
		AllowedOrigins: splitAndTrim(os.Getenv("CORS_ALLOWED_ORIGINS")),
		AllowedMethods: splitAndTrim(os.Getenv("CORS_ALLOWED_METHODS")),
		AllowedHeaders: splitAndTrim(os.Getenv("CORS_ALLOWED_HEADERS")),
		MaxAge:         maxAge,
	}
	provided := len(cfg.AllowedOrigins) > 0 || len(cfg.AllowedMethods) > 0 || len(cfg.AllowedHeaders) > 0 || maxAge > 0
	if !provided {
		return CORSConfig{}, false
	}
	return cfg, true
}

func splitAndTrim(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
