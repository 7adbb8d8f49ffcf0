package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"freightrate/internal/history"
	"freightrate/internal/logging"
	freight "freightrate/internal/rate"
)

// Calculator produces freight rates.
type Calculator interface {
	Calculate(ctx context.Context, req freight.Request) (freight.Result, error)
}

// Options configures the HTTP surface. Calculator is required.
type Options struct {
	Calculator  Calculator
	History     history.Store
	Logger      *zap.Logger
	CORSOrigins []string
	// CalcRateLimit is requests per second on /api/calculate; 0 disables it.
	CalcRateLimit float64
	CalcRateBurst int
}

type Server struct {
	calc    Calculator
	history history.Store
	log     *zap.Logger
	limiter *rate.Limiter
}

func New(opts Options) http.Handler {
	if opts.Calculator == nil {
		panic("server: nil Calculator")
	}
	s := &Server{
		calc:    opts.Calculator,
		history: opts.History,
		log:     logging.OrNop(opts.Logger),
	}
	if opts.CalcRateLimit > 0 {
		burst := opts.CalcRateBurst
		if burst <= 0 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(opts.CalcRateLimit), burst)
	}

	r := chi.NewRouter()
	// Observability: Request ID and structured request log
	r.Use(requestIDMiddleware)
	r.Use(requestLogger(s.log))
	r.Use(middleware.Recoverer)
	if len(opts.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: opts.CORSOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
			ExposedHeaders: []string{"X-Request-ID"},
			MaxAge:         300,
		}))
	}

	r.Get("/healthz", s.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.With(s.rateLimit).Post("/calculate", s.handleCalculate)
		r.Get("/history", s.handleHistory)
	})
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// maxCalculateBody bounds the request body of POST /calculate.
const maxCalculateBody = 1 << 20

func (s *Server) handleCalculate(w http.ResponseWriter, r *http.Request) {
	req, err := DecodeCalculateRequest(http.MaxBytesReader(w, r.Body, maxCalculateBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeErrorJSON(w, http.StatusRequestEntityTooLarge, "payload_too_large", "request body too large")
			return
		}
		if errors.Is(err, ErrMissingSensitivity) {
			writeErrorJSON(w, http.StatusBadRequest, "invalid_request", "sensitivityCoeff required")
			return
		}
		writeErrorJSON(w, http.StatusBadRequest, "invalid_json", "invalid json")
		return
	}
	debug, _ := strconv.ParseBool(r.URL.Query().Get("debug"))

	ctx := r.Context()
	res, err := s.calc.Calculate(ctx, freight.Request{
		OriginPortID:      req.OriginPortID,
		DestinationPortID: req.DestinationPortID,
		ContainerType:     req.ContainerType,
		BaseRates:         req.BaseRates,
		Indices:           req.Indices,
		SensitivityCoeff:  req.SensitivityCoeff,
		Weight:            freight.DefaultWeight,
		Debug:             debug,
	})
	body, merr := json.Marshal(res)
	if merr != nil {
		s.log.Error("encode calculation result",
			zap.Error(merr),
			zap.String("request_id", w.Header().Get("X-Request-ID")))
		writeErrorJSON(w, http.StatusInternalServerError, "encode_error", "calculation result could not be encoded")
		return
	}
	if err != nil {
		// The -1 result is still the response body.
		s.log.Error("freight rate calculation failed",
			zap.Error(err),
			zap.String("request_id", w.Header().Get("X-Request-ID")),
			zap.String("origin", req.OriginPortID),
			zap.String("destination", req.DestinationPortID),
		)
	} else if s.history != nil {
		rec := history.Record{
			ID:                uuid.New(),
			OriginPortID:      req.OriginPortID,
			DestinationPortID: req.DestinationPortID,
			ContainerType:     req.ContainerType,
			Weight:            freight.DefaultWeight,
			Rate:              res.FinalRate,
			Email:             req.Email,
			Sources:           res.Details.IndexSources,
			CreatedAt:         time.Now().UTC(),
		}
		if herr := s.history.SaveCalculation(ctx, rec); herr != nil {
			s.log.Error("save calculation history", zap.Error(herr), zap.Stringer("id", rec.ID))
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if _, err := w.Write(append(body, '\n')); err != nil {
		s.log.Warn("write calculation response", zap.Error(err))
	}
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeErrorJSON(w, http.StatusServiceUnavailable, "history_unavailable", "history store not configured")
		return
	}
	limit := history.RecentLimit
	if v := strings.TrimSpace(r.URL.Query().Get("limit")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeErrorJSON(w, http.StatusBadRequest, "invalid_limit", "limit must be a positive integer")
			return
		}
		if n < limit {
			limit = n
		}
	}
	recs, err := s.history.RecentCalculations(r.Context(), limit)
	if err != nil {
		s.log.Error("list calculation history", zap.Error(err))
		writeErrorJSON(w, http.StatusInternalServerError, "db_error", "db error")
		return
	}
	if recs == nil {
		recs = []history.Record{}
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(recs)
}

func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.limiter != nil && !s.limiter.Allow() {
			w.Header().Set("Retry-After", "1")
			writeErrorJSON(w, http.StatusTooManyRequests, "rate_limited", "too many requests")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// writeErrorJSON writes a standardized JSON error response:
// {"error": {"code": string, "message": string}}
func writeErrorJSON(w http.ResponseWriter, status int, code string, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
	})
}

// requestIDMiddleware ensures X-Request-ID is set on the response.
// If provided in the request header, it is propagated; otherwise a UUID is generated.
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rid := strings.TrimSpace(r.Header.Get("X-Request-ID"))
		if rid == "" {
			rid = uuid.New().String()
		}
		w.Header().Set("X-Request-ID", rid)
		next.ServeHTTP(w, r)
	})
}

func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			defer func() {
				status := ww.Status()
				if status == 0 {
					status = http.StatusOK
				}
				log.Info("http request",
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Int("status", status),
					zap.Int("bytes", ww.BytesWritten()),
					zap.Duration("duration", time.Since(start)),
					zap.String("request_id", w.Header().Get("X-Request-ID")),
				)
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
