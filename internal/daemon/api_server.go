package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"datamart/internal/api"
	"datamart/internal/config"
	"datamart/internal/fulfillment"
	"datamart/internal/logging"
	"datamart/internal/services"
)

const requestIDHeader = "X-Request-ID"

type apiServer struct {
	bind   string
	logger *slog.Logger
	daemon *Daemon

	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) *apiServer {
	srv := &apiServer{
		bind:   strings.TrimSpace(cfg.Paths.APIBind),
		logger: logger,
		daemon: d,
	}
	srv.server = &http.Server{
		Handler:           srv.routes(cfg.Paths.APIToken),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv
}

func (s *apiServer) routes(token string) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/status", authMiddleware(token, s.handleStatus))
	mux.HandleFunc("GET /api/transactions", authMiddleware(token, s.handleList))
	mux.HandleFunc("GET /api/transactions/{kind}/{id}", authMiddleware(token, s.handleShow))
	mux.HandleFunc("POST /api/transactions/{kind}/{id}", authMiddleware(token, s.handleOpen))
	mux.HandleFunc("DELETE /api/transactions/{kind}/{id}", authMiddleware(token, s.handleCancel))
	mux.HandleFunc("POST /api/transactions/{kind}/{id}/retry", authMiddleware(token, s.handleRetry))
	mux.HandleFunc("POST /api/notifications/test", authMiddleware(token, s.handleTestNotification))
	return s.withRequestID(mux)
}

// listen binds the API address without serving, so a taken port fails
// Start before any transaction resumes.
func (s *apiServer) listen() error {
	if s.bind == "" {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener
	return nil
}

func (s *apiServer) serve(ctx context.Context) {
	if s.listener == nil {
		return
	}
	listener := s.listener
	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log().Error("api server error",
				logging.Error(err),
				logging.Event("api_serve_failed"),
				logging.Hint("check api_bind in the config"),
			)
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.log().Info("api server listening", logging.String("address", listener.Addr().String()))
}

func (s *apiServer) stop() {
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

func (s *apiServer) address() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// withRequestID tags every request with an id, echoed in the response and
// carried in the request context for log correlation.
func (s *apiServer) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(requestIDHeader))
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		ctx := services.WithRequestID(r.Context(), id)
		logging.WithContext(ctx, s.log()).Debug("api request",
			logging.String("method", r.Method),
			logging.String("path", r.URL.Path),
		)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := s.daemon.Status(r.Context())
	s.writeJSON(w, http.StatusOK, api.DaemonStatus{
		Running:      status.Running,
		PID:          status.PID,
		LedgerPath:   status.LedgerPath,
		LockFilePath: status.LockFilePath,
		APIBind:      status.APIBind,
		Tracker:      api.FromStatusSummary(status.Tracker),
	})
}

func (s *apiServer) handleTestNotification(w http.ResponseWriter, r *http.Request) {
	notifier := s.daemon.notifier
	if !notifier.Enabled() {
		s.writeJSON(w, http.StatusOK, api.NotificationResponse{Message: "Notifications disabled (set notifications.ntfy_topic)"})
		return
	}
	if err := notifier.TestNotification(r.Context()); err != nil {
		s.writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, api.NotificationResponse{Sent: true, Message: "Test notification sent"})
}

func (s *apiServer) handleList(w http.ResponseWriter, r *http.Request) {
	views, err := s.daemon.tracker.List(r.Context())
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.TransactionListResponse{Transactions: api.FromViews(views)})
}

func (s *apiServer) handleShow(w http.ResponseWriter, r *http.Request) {
	kind, id, err := transactionKey(r)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	view, err := s.daemon.tracker.Lookup(r.Context(), kind, id)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.TransactionResponse{Transaction: api.FromView(view)})
}

func (s *apiServer) handleOpen(w http.ResponseWriter, r *http.Request) {
	kind, id, err := transactionKey(r)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	view, err := s.daemon.tracker.Open(r.Context(), kind, id)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, api.TransactionResponse{Transaction: api.FromView(view)})
}

func (s *apiServer) handleCancel(w http.ResponseWriter, r *http.Request) {
	kind, id, err := transactionKey(r)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	view, err := s.daemon.tracker.Cancel(kind, id)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.TransactionResponse{Transaction: api.FromView(view)})
}

func (s *apiServer) handleRetry(w http.ResponseWriter, r *http.Request) {
	kind, id, err := transactionKey(r)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	view, err := s.daemon.tracker.Retry(r.Context(), kind, id)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, api.TransactionResponse{Transaction: api.FromView(view)})
}

func transactionKey(r *http.Request) (fulfillment.Kind, int64, error) {
	kind, err := fulfillment.ParseKind(r.PathValue("kind"))
	if err != nil {
		return "", 0, err
	}
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id < 0 {
		return "", 0, services.Wrap(services.ErrValidation, "api", "parse", "invalid transaction id "+strconv.Quote(r.PathValue("id")), nil)
	}
	return kind, id, nil
}

func (s *apiServer) writeFailure(w http.ResponseWriter, r *http.Request, err error) {
	status := services.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		logging.ErrorWithContext(logging.WithContext(r.Context(), s.log()), "api request failed", "api_request_failed",
			logging.Error(err),
			logging.String("path", r.URL.Path),
		)
	}
	s.writeError(w, status, err.Error())
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log().Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, api.ErrorResponse{Error: message})
}

func (s *apiServer) log() *slog.Logger {
	if s.logger != nil {
		return logging.NewComponentLogger(s.logger, "api-server")
	}
	return logging.NewNop()
}
