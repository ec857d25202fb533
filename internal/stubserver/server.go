package stubserver

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Server is a development backend that speaks the assistant API: auth,
// queries with confirmation round-trips, history, feedback and the admin
// knowledge surface.
type Server struct {
	store    *Store
	answerer Answerer
	log      *zap.Logger

	mu       sync.Mutex
	sessions map[string]string // token -> user ID
}

func NewServer(store *Store, answerer Answerer, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	if answerer == nil {
		answerer = NewCannedAnswerer()
	}
	return &Server{
		store:    store,
		answerer: answerer,
		log:      log,
		sessions: make(map[string]string),
	}
}

// Handler builds the HTTP router. Query processing works without a token;
// history, feedback, deletion and the admin surface require one.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Post("/auth/register", s.handleRegister)
	r.Post("/auth/login", s.handleLogin)

	r.Group(func(r chi.Router) {
		r.Use(s.requireAuth)
		r.Get("/auth/profile", s.handleProfile)
		r.Put("/auth/preferences", s.handlePreferences)
		r.Get("/assistant/history", s.handleHistory)
		r.Post("/assistant/feedback", s.handleFeedback)
		r.Delete("/assistant/knowledge/{id}", s.handleDeleteKnowledge)
	})

	r.Group(func(r chi.Router) {
		r.Use(s.optionalAuth)
		r.Post("/assistant/query", s.handleQuery)
	})

	r.Group(func(r chi.Router) {
		r.Use(s.requireAdmin)
		r.Get("/admin/knowledge", s.handleListKnowledge)
		r.Post("/admin/update-knowledge", s.handleUpdateKnowledge)
		r.Post("/admin/update-knowledge/{id}", s.handleUpdateSingleKnowledge)
		r.Post("/admin/clear-knowledge", s.handleClearKnowledge)
	})

	return r
}

// issueToken creates a session token for the user.
func (s *Server) issueToken(userID string) string {
	token := uuid.NewString()
	s.mu.Lock()
	s.sessions[token] = userID
	s.mu.Unlock()
	return token
}

// userForToken resolves a bearer token to a user record.
func (s *Server) userForToken(r *http.Request) (UserRecord, bool) {
	auth := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(auth, prefix) {
		return UserRecord{}, false
	}
	presented := auth[len(prefix):]

	s.mu.Lock()
	var userID string
	for token, id := range s.sessions {
		if subtle.ConstantTimeCompare([]byte(token), []byte(presented)) == 1 {
			userID = id
			break
		}
	}
	s.mu.Unlock()

	if userID == "" {
		return UserRecord{}, false
	}
	user, err := s.store.UserByID(userID)
	if err != nil {
		return UserRecord{}, false
	}
	return user, true
}

type contextKey string

const userKey contextKey = "user"

func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := s.userForToken(r)
		if !ok {
			httpError(w, http.StatusUnauthorized, "invalid or missing bearer token")
			return
		}
		next.ServeHTTP(w, r.WithContext(withUser(r.Context(), user)))
	})
}

func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := s.userForToken(r)
		if !ok {
			httpError(w, http.StatusUnauthorized, "invalid or missing bearer token")
			return
		}
		if !user.IsAdmin {
			httpError(w, http.StatusForbidden, "admin access required")
			return
		}
		next.ServeHTTP(w, r.WithContext(withUser(r.Context(), user)))
	})
}

// optionalAuth attaches the user when a valid token is present but lets
// guests through.
func (s *Server) optionalAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if user, ok := s.userForToken(r); ok {
			r = r.WithContext(withUser(r.Context(), user))
		}
		next.ServeHTTP(w, r)
	})
}

func hashPassword(password string) string {
	sum := sha256.Sum256([]byte("vozterm:" + password))
	return hex.EncodeToString(sum[:])
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, code int, format string, args ...any) {
	writeJSON(w, code, map[string]any{
		"error": map[string]any{
			"message": fmt.Sprintf(format, args...),
		},
	})
}
