// Package server is the thin transport layer over the engine: a
// websocket endpoint for live sessions plus a few HTTP handlers for
// search, notifications and health.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"chat-hub/contract"
	"chat-hub/domain"
	"chat-hub/errors"
	"chat-hub/repositories"
	"chat-hub/runtime"
	"chat-hub/search"
)

const shutdownTimeout = 10 * time.Second

type Server struct {
	log           *slog.Logger
	engine        *runtime.Engine
	verifier      contract.AuthVerifier
	store         contract.DataStore
	notifications repositories.NotificationRepository
	index         *search.Index

	httpServer *http.Server
	upgrader   websocket.Upgrader
}

func New(log *slog.Logger, engine *runtime.Engine, verifier contract.AuthVerifier,
	store contract.DataStore, notifications repositories.NotificationRepository,
	index *search.Index, addr string) *Server {
	s := &Server{
		log:           log,
		engine:        engine,
		verifier:      verifier,
		store:         store,
		notifications: notifications,
		index:         index,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Browser clients connect from arbitrary origins; access
			// control happens at the token level, not the origin.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/api/messages/search", s.handleSearch)
	mux.HandleFunc("/api/notifications", s.handleNotifications)
	s.httpServer = &http.Server{Addr: addr, Handler: mux}
	return s
}

// Run serves until the context is cancelled, then shuts down
// gracefully. Live websockets are closed by their pumps when the
// context dies.
func (s *Server) Run(ctx context.Context) error {
	errChan := make(chan error, 1)
	go func() {
		s.log.Info("Starting HTTP server", "address", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errChan:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return s.httpServer.Shutdown(shutdownCtx)
}

// handleWS authenticates before upgrading: a bad credential is a plain
// 401 and no websocket, no engine state.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	credential := bearerToken(r)
	if credential == "" {
		http.Error(w, "missing credential", http.StatusUnauthorized)
		return
	}

	conn, err := s.engine.Connect(r.Context(), credential)
	if err != nil {
		s.log.Info("Handshake rejected", "error", err)
		http.Error(w, "authentication failed", http.StatusUnauthorized)
		return
	}

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade failed after registration; roll the session back.
		s.engine.Disconnect(conn)
		s.log.Warn("Websocket upgrade failed", "error", err)
		return
	}

	newClient(ws, conn, s.engine, s.log).run(r.Context())
}

// handleSearch serves full-text message search within one community,
// re-checking membership so search never leaks rooms the caller left.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	identity, ok := s.authenticate(w, r)
	if !ok {
		return
	}
	if s.index == nil {
		http.Error(w, "search disabled", http.StatusNotImplemented)
		return
	}

	terms := r.URL.Query().Get("q")
	communityID := r.URL.Query().Get("communityId")
	if terms == "" || communityID == "" {
		http.Error(w, "q and communityId are required", http.StatusBadRequest)
		return
	}

	member, err := s.store.IsCommunityMember(r.Context(), communityID, identity.UserID)
	if err != nil {
		http.Error(w, "membership check failed", http.StatusInternalServerError)
		return
	}
	if !member {
		http.Error(w, "not a member of this community", http.StatusForbidden)
		return
	}

	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 && parsed <= 100 {
			limit = parsed
		}
	}

	hits, err := s.index.Search(r.Context(), terms, []domain.RoomID{domain.CommunityRoom(communityID)}, limit)
	if err != nil {
		s.log.Error("Search failed", "error", err)
		http.Error(w, "search failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]any{"results": hits})
}

func (s *Server) handleNotifications(w http.ResponseWriter, r *http.Request) {
	identity, ok := s.authenticate(w, r)
	if !ok {
		return
	}

	switch r.Method {
	case http.MethodGet:
		notifications, err := s.notifications.GetNotifications(r.Context(), identity.UserID, 50)
		if err != nil {
			http.Error(w, "listing failed", http.StatusInternalServerError)
			return
		}
		unread, err := s.notifications.UnreadCount(r.Context(), identity.UserID)
		if err != nil {
			http.Error(w, "listing failed", http.StatusInternalServerError)
			return
		}
		writeJSON(w, map[string]any{"notifications": notifications, "unreadCount": unread})

	case http.MethodPost:
		if err := s.notifications.MarkAllRead(r.Context(), identity.UserID); err != nil {
			http.Error(w, "update failed", http.StatusInternalServerError)
			return
		}
		writeJSON(w, map[string]any{"success": true})

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) authenticate(w http.ResponseWriter, r *http.Request) (contract.Identity, bool) {
	credential := bearerToken(r)
	if credential == "" {
		http.Error(w, "missing credential", http.StatusUnauthorized)
		return contract.Identity{}, false
	}
	identity, err := s.verifier.Verify(r.Context(), credential)
	if err != nil {
		http.Error(w, errors.ErrAuthenticationFailed.Error(), http.StatusUnauthorized)
		return contract.Identity{}, false
	}
	return identity, true
}

// bearerToken accepts the credential as an Authorization header or,
// for browser websocket clients that cannot set headers, a query
// parameter.
func bearerToken(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return r.URL.Query().Get("token")
}

func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(payload)
}
