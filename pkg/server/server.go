// Package server exposes the HTTP surface: the platform webhook plus the
// JSON API the storefront frontend calls around checkout.
package server

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"daigo/pkg/checkout"
	"daigo/pkg/config"
	"daigo/pkg/logger"
	"daigo/pkg/webhook"
)

type Server struct {
	server     *http.Server
	config     *config.Config
	dispatcher *webhook.Dispatcher
	checker    *checkout.SyncChecker
	submitter  *checkout.Submitter
}

func NewServer(cfg *config.Config, dispatcher *webhook.Dispatcher, checker *checkout.SyncChecker, submitter *checkout.Submitter) *Server {
	return &Server{
		config:     cfg,
		dispatcher: dispatcher,
		checker:    checker,
		submitter:  submitter,
	}
}

func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Gateway.Host, s.config.Gateway.Port)
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.withCORS(s.Routes()),
	}

	logger.InfoCF("server", "Starting HTTP server", map[string]interface{}{
		"addr": addr,
	})

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.ErrorCF("server", "HTTP server failed", map[string]interface{}{
				logger.FieldError: err.Error(),
			})
		}
	}()

	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		logger.InfoC("server", "Stopping HTTP server")
		return s.server.Shutdown(ctx)
	}
	return nil
}

func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/webhook", s.handleWebhook)
	mux.HandleFunc("/api/sync-cart", s.handleSyncCart)
	mux.HandleFunc("/api/submit-order", s.handleSubmitOrder)
	mux.HandleFunc("/api/checkout", s.handleCheckout)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/", s.handleRoot)
	return mux
}

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "read body failed", http.StatusBadRequest)
		return
	}

	// Signature validation is skipped when no channel secret is
	// configured, which keeps local testing simple.
	if secret := s.config.Chat.ChannelSecret; secret != "" {
		if !validSignature(secret, body, r.Header.Get("X-Line-Signature")) {
			logger.WarnC("server", "webhook signature mismatch")
			http.Error(w, "bad signature", http.StatusForbidden)
			return
		}
	}

	events, err := webhook.ParseEvents(bytes.NewReader(body))
	if err != nil {
		logger.ErrorCF("server", "webhook body parse failed", map[string]interface{}{
			logger.FieldError: err.Error(),
		})
		http.Error(w, "bad body", http.StatusBadRequest)
		return
	}

	s.dispatcher.Dispatch(r.Context(), events)

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (s *Server) handleSyncCart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Items []checkout.SyncItem `json:"items"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad body", http.StatusBadRequest)
		return
	}

	results, hasChanges := s.checker.Check(r.Context(), req.Items)
	if results == nil {
		results = []checkout.SyncResult{}
	}
	writeJSON(w, map[string]interface{}{
		"results":    results,
		"hasChanges": hasChanges,
	})
}

func (s *Server) handleSubmitOrder(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req checkout.SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad body", http.StatusBadRequest)
		return
	}

	orderID, err := s.submitter.Submit(r.Context(), req)
	if err == checkout.ErrMissingFields {
		http.Error(w, "缺少必要欄位", http.StatusBadRequest)
		return
	}
	if err != nil {
		logger.ErrorCF("server", "order submit failed", map[string]interface{}{
			logger.FieldError: err.Error(),
		})
		http.Error(w, "訂單儲存失敗", http.StatusInternalServerError)
		return
	}

	writeJSON(w, map[string]interface{}{"ok": true, "orderId": orderID})
}

func (s *Server) handleCheckout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		UserID  string `json:"userId"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad body", http.StatusBadRequest)
		return
	}

	err := s.submitter.ForwardQuote(r.Context(), req.UserID, req.Message)
	if err == checkout.ErrMissingFields {
		http.Error(w, "缺少 userId 或 message", http.StatusBadRequest)
		return
	}
	if err != nil {
		logger.ErrorCF("server", "checkout push failed", map[string]interface{}{
			logger.FieldError: err.Error(),
		})
		http.Error(w, "發送失敗", http.StatusInternalServerError)
		return
	}

	writeJSON(w, map[string]interface{}{"ok": true})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "Daigo Gateway Running\nTime: %s", time.Now().Format(time.RFC3339))
}

func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")
		w.Header().Set("Access-Control-Max-Age", "86400")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func validSignature(secret string, body []byte, signature string) bool {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

func writeJSON(w http.ResponseWriter, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.ErrorCF("server", "response encode failed", map[string]interface{}{
			logger.FieldError: err.Error(),
		})
	}
}
