// Package api serves the token sale over HTTP with JSON bodies.
// Addresses are base58 strings; amounts are integers.
//
// Signer fields in request bodies are taken as asserted. Verifying that the
// caller controls them is left to the wallet layer in front of this service.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"solana-token-sale/internal/domain"
	"solana-token-sale/internal/journal"
	"solana-token-sale/internal/sale"
	"solana-token-sale/internal/storage"
)

const requestLimit = 1 << 20 // 1 MiB

// Options configures the HTTP API.
type Options struct {
	Sale      *sale.Program
	Purchases storage.PurchaseStore
	Volume    storage.VolumeStore
	// Metrics serves /metrics when set.
	Metrics http.Handler
	// Status is rendered at /status when set.
	Status func() any
	// DevMode enables /v1/dev endpoints.
	DevMode bool
	Logger  logrus.FieldLogger
	// Now defaults to time.Now.
	Now func() time.Time
}

// Server holds the handlers.
type Server struct {
	opts Options
	log  *logrus.Entry
	now  func() time.Time
}

// New creates the API server.
func New(opts Options) *Server {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	return &Server{
		opts: opts,
		log:  opts.Logger.WithField("component", "api"),
		now:  now,
	}
}

// Router returns the HTTP handler with every route mounted.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	if s.opts.Metrics != nil {
		r.Handle("/metrics", s.opts.Metrics)
	}
	if s.opts.Status != nil {
		r.Get("/status", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, s.opts.Status())
		})
	}

	r.Route("/v1", func(r chi.Router) {
		r.Route("/sale", func(r chi.Router) {
			r.Get("/", s.getSale)
			r.Get("/quote", s.quote)
			r.Post("/initialize", s.initialize)
			r.Post("/price", s.updatePrice)
			r.Post("/owner", s.transferOwnership)
			r.Post("/treasury", s.updateTreasury)
			r.Post("/buy", s.buy)
		})
		r.Get("/buyers/{buyer}", s.getBuyer)
		r.Get("/buyers/{buyer}/purchases", s.getBuyerPurchases)
		r.Get("/volume", s.getVolume)
		if s.opts.DevMode {
			r.Post("/dev/airdrop", s.airdrop)
		}
	})
	return r
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.WithFields(logrus.Fields{
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     ww.Status(),
			"duration":   time.Since(start).String(),
			"request_id": middleware.GetReqID(r.Context()),
		}).Debug("request")
	})
}

// errorBody is the JSON error response.
type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// statusFor maps a sale result code to an HTTP status.
func statusFor(code string) int {
	switch code {
	case sale.CodeInvalidAmount, sale.CodeNotEnoughSol:
		return http.StatusBadRequest
	case sale.CodeUnauthorized:
		return http.StatusForbidden
	case sale.CodeNotInitialized, sale.CodeBuyerNotFound:
		return http.StatusNotFound
	case sale.CodeAccountMismatch, sale.CodeAlreadyInitialized, sale.CodeConflict, sale.CodePoolExhausted:
		return http.StatusConflict
	case sale.CodeArithmeticOverflow:
		return http.StatusUnprocessableEntity
	case sale.CodeCancelled:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := sale.Code(err)
	status := statusFor(code)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		s.log.WithError(err).WithField("path", r.URL.Path).Error("request failed")
		msg = "internal error"
	}
	writeJSON(w, status, errorBody{Error: msg, Code: code})
}

func writeBadRequest(w http.ResponseWriter, err error) {
	writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error(), Code: "BAD_REQUEST"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, requestLimit))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeBadRequest(w, fmt.Errorf("decode request: %w", err))
		return false
	}
	return true
}

func addressParam(w http.ResponseWriter, r *http.Request, name string) (domain.Address, bool) {
	a, err := domain.ParseAddress(chi.URLParam(r, name))
	if err != nil {
		writeBadRequest(w, fmt.Errorf("%s: %w", name, err))
		return domain.Address{}, false
	}
	return a, true
}

func uintQuery(r *http.Request, name string, def uint64) (uint64, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	return n, nil
}

func intQuery(r *http.Request, name string, def int64) (int64, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	return n, nil
}

var errJournalDisabled = errors.New("journal is not configured")

func validInterval(seconds int) bool {
	for _, i := range journal.Intervals {
		if i == seconds {
			return true
		}
	}
	return false
}
