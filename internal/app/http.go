package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"runtime/debug"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/dshills/opdispatch/internal/dispatcher"
	"github.com/dshills/opdispatch/internal/dispatcher/execctx"
	"github.com/dshills/opdispatch/internal/dispatcher/handler"
	"github.com/dshills/opdispatch/internal/logging"
)

// MaxBodyBytes limits the request body read into a RequestContext.
const MaxBodyBytes = 1 << 20

// RequestIDHeader carries the request ID in both directions.
const RequestIDHeader = "X-Request-ID"

type contextKey string

const requestIDKey contextKey = "requestID"

// GetRequestID retrieves the request ID from context.
func GetRequestID(ctx context.Context) string {
	if reqID, ok := ctx.Value(requestIDKey).(string); ok {
		return reqID
	}
	return ""
}

// NewHTTPHandler serves every route in routes through d. Each request is
// turned into a RequestContext carrying the route's operation ID and tags;
// requests nothing resolves fall through to a 501 response. Server
// endpoints live under AdminPrefix.
func NewHTTPHandler(d *dispatcher.Dispatcher, routes RouteTable, logger logging.Interface) (http.Handler, error) {
	if logger == nil {
		logger = logging.Nop()
	}
	s := &httpServer{dispatcher: d, routes: routes, logger: logger}

	mux := http.NewServeMux()
	for i, route := range routes.Routes {
		if err := register(mux, route.Pattern(), s.serveRoute(route)); err != nil {
			return nil, &RouteError{Index: i, Route: route, Reason: err.Error()}
		}
	}
	mux.HandleFunc("GET "+AdminPrefix+"health", s.serveHealth)
	mux.HandleFunc("GET "+AdminPrefix+"routes", s.serveRoutes)
	mux.HandleFunc("GET "+AdminPrefix+"metrics", s.serveMetrics)

	var h http.Handler = mux
	h = RecoveryMiddleware(logger)(h)
	h = LoggingMiddleware(logger)(h)
	h = RequestIDMiddleware()(h)
	return h, nil
}

// register adds a pattern, turning ServeMux's panic on a malformed or
// conflicting pattern into an error.
func register(mux *http.ServeMux, pattern string, h http.Handler) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%v", r)
		}
	}()
	mux.Handle(pattern, h)
	return nil
}

type httpServer struct {
	dispatcher *dispatcher.Dispatcher
	routes     RouteTable
	logger     logging.Interface
}

func (s *httpServer) serveRoute(route Route) http.HandlerFunc {
	params := route.ParamNames()

	return func(w http.ResponseWriter, r *http.Request) {
		reqID := GetRequestID(r.Context())

		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
		if err != nil {
			status := http.StatusBadRequest
			var mbe *http.MaxBytesError
			if errors.As(err, &mbe) {
				status = http.StatusRequestEntityTooLarge
			}
			WriteJSON(w, map[string]string{"error": err.Error(), "request_id": reqID}, status)
			return
		}

		ctx := execctx.New(route.OperationID, slices.Clone(route.Tags), r.Method).WithContext(r.Context())
		ctx.Path = r.URL.Path
		for _, name := range params {
			ctx.Params[name] = r.PathValue(name)
		}
		ctx.Query = r.URL.Query()
		ctx.Header = r.Header
		ctx.Body = body
		ctx.RequestID = reqID

		result := s.dispatcher.Handle(ctx, func() handler.Result {
			return notImplemented(ctx)
		})
		s.writeResult(w, reqID, result)
	}
}

// writeResult renders a handler result. Strings and byte slices are written
// verbatim; other bodies are JSON encoded.
func (s *httpServer) writeResult(w http.ResponseWriter, reqID string, res handler.Result) {
	for k, v := range res.Header {
		w.Header().Set(k, v)
	}
	status := StatusCode(res)

	if res.IsError() {
		s.logger.Error("request %s failed: %v", reqID, res.Error)
	}

	switch body := res.Body.(type) {
	case nil:
		switch {
		case res.IsError():
			msg := res.Message
			if msg == "" {
				msg = http.StatusText(status)
			}
			WriteJSON(w, map[string]string{"error": msg, "request_id": reqID}, status)
		case res.Message != "":
			WriteJSON(w, map[string]string{"message": res.Message, "request_id": reqID}, status)
		default:
			w.WriteHeader(status)
		}
	case string:
		setDefaultContentType(w, "text/plain; charset=utf-8")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	case []byte:
		setDefaultContentType(w, "application/octet-stream")
		w.WriteHeader(status)
		_, _ = w.Write(body)
	default:
		WriteJSON(w, body, status)
	}
}

// StatusCode picks the HTTP status for a result: its Code when set, else
// one derived from its Status.
func StatusCode(res handler.Result) int {
	if res.Code >= 100 && res.Code <= 599 {
		return res.Code
	}
	switch res.Status {
	case handler.StatusOK:
		return http.StatusOK
	case handler.StatusNoOp:
		return http.StatusNotImplemented
	case handler.StatusCancelled:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

func (s *httpServer) serveHealth(w http.ResponseWriter, _ *http.Request) {
	WriteJSON(w, map[string]any{
		"status":     "ok",
		"operations": len(s.dispatcher.Registry().OperationIDs()),
		"namespaces": len(s.dispatcher.Registry().Namespaces()),
	}, http.StatusOK)
}

func (s *httpServer) serveRoutes(w http.ResponseWriter, _ *http.Request) {
	WriteJSON(w, map[string]any{
		"http":     s.routes.Routes,
		"handlers": s.dispatcher.Registry().Routes(),
	}, http.StatusOK)
}

func (s *httpServer) serveMetrics(w http.ResponseWriter, _ *http.Request) {
	m := s.dispatcher.Metrics()
	if m == nil {
		WriteJSON(w, map[string]string{"error": "metrics disabled"}, http.StatusNotFound)
		return
	}
	snap := m.Snapshot()
	WriteJSON(w, map[string]any{
		"total_dispatches": snap.TotalDispatches,
		"total_errors":     snap.TotalErrors,
		"total_cancelled":  snap.TotalCancelled,
		"total_unhandled":  snap.TotalUnhandled,
		"average_ms":       float64(snap.AverageDuration) / float64(time.Millisecond),
		"top":              m.TopBindings(10),
	}, http.StatusOK)
}

// WriteJSON writes data as a JSON response.
func WriteJSON(w http.ResponseWriter, data any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func setDefaultContentType(w http.ResponseWriter, ct string) {
	if w.Header().Get("Content-Type") == "" {
		w.Header().Set("Content-Type", ct)
	}
}

// RequestIDMiddleware reuses the caller's X-Request-ID or assigns a new one,
// and echoes it on the response.
func RequestIDMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqID := r.Header.Get(RequestIDHeader)
			if reqID == "" {
				reqID = uuid.NewString()
			}
			r = r.WithContext(context.WithValue(r.Context(), requestIDKey, reqID))
			w.Header().Set(RequestIDHeader, reqID)
			next.ServeHTTP(w, r)
		})
	}
}

// LoggingMiddleware logs each request with its status and duration.
func LoggingMiddleware(logger logging.Interface) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(wrapped, r)

			logger.Info("%s %s -> %d in %s (request %s)",
				r.Method, r.URL.Path, wrapped.statusCode, time.Since(start), GetRequestID(r.Context()))
		})
	}
}

// RecoveryMiddleware turns a handler panic into a 500 response.
func RecoveryMiddleware(logger logging.Interface) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					reqID := GetRequestID(r.Context())
					logger.Error("panic serving request %s: %v\n%s", reqID, err, debug.Stack())
					WriteJSON(w, map[string]string{
						"error":      http.StatusText(http.StatusInternalServerError),
						"request_id": reqID,
					}, http.StatusInternalServerError)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// responseWriter captures the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
