// internal/httpserver/server.go
//
// HTTP server wiring for the wordchain backend.
// Responsibilities:
//   - Router + middleware (JSON, CORS, timeouts, panic recovery, request IDs).
//   - Public endpoints: "/", "/health".
//   - Game endpoints (optional auth): /game/new, /game/word, /game/reset,
//     /game/state, /game/leaderboard, /game/watch (websocket).
//   - Market + analysis endpoints: mounted under /market and /analysis.
//   - Auth + profile/stat endpoints (require auth): /auth/*, /stats/me, /games/mine.
//   - JWT + cookie handling, anonymous session cookie, user CRUD helpers.
//   - Database persistence for finished chains and user stats.
//
// Notes:
//   - CORS is origin-aware and credentials-enabled (so cookies work).
//   - Optional auth decorates requests with user context when a valid token
//     is present; routes can still run for guests.
//   - Submissions against one session are serialized with a per-session
//     mutex; snapshots render under the same mutex so readers never see a
//     half-applied turn. Sessions never share state, so there is no
//     cross-session lock. The mutex entry is dropped once a session ends.
//   - The engine itself never sees a terminal session: /game/word answers
//     409 for finished games before calling in.

package httpserver

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"github.com/dhpark-dev/wordchain/internal/game"
	"github.com/dhpark-dev/wordchain/internal/market"
	"github.com/dhpark-dev/wordchain/internal/store"
)

// Server bundles router, in-memory session store, DB handle, and the
// market-data service.
type Server struct {
	r      *chi.Mux
	store  store.Store
	db     *sql.DB
	market *market.Service
	hub    *watchHub

	locks sync.Map // gameID → *sync.Mutex, serializes submissions per session
}

// New constructs a Server, installs middleware, and registers routes.
func New(st store.Store, db *sql.DB, mkt *market.Service) *Server {
	s := &Server{r: chi.NewRouter(), store: st, db: db, market: mkt, hub: newWatchHub()}

	// --- middleware ---
	s.r.Use(chimw.RequestID)                 // add X-Request-ID
	s.r.Use(chimw.RealIP)                    // set RemoteAddr from X-Forwarded-For etc.
	s.r.Use(chimw.Recoverer)                 // recover from panics
	s.r.Use(chimw.Timeout(30 * time.Second)) // bound handler time (refresh can be slow)
	s.r.Use(jsonContentType)                 // default JSON responses
	s.r.Use(corsFromEnv)                     // credentials-friendly CORS

	// --- diagnostics ---
	s.r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"service":"wordchain","endpoints":["/health","POST /game/new","POST /game/word","POST /game/reset","GET /game/state","GET /game/leaderboard","/market/*","/analysis/*","/auth/*"]}`))
	})
	s.r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	})

	// Game endpoints — OPTIONAL AUTH (guests can play)
	s.r.With(s.withOptionalAuth()).Post("/game/new", s.handleNewGame)
	s.r.With(s.withOptionalAuth()).Post("/game/word", s.handleWord)
	s.r.With(s.withOptionalAuth()).Post("/game/reset", s.handleReset)
	s.r.Get("/game/state", s.handleState)
	s.r.Get("/game/leaderboard", s.handleLeaderboard)
	s.r.Get("/game/watch", s.handleWatch)

	// Market data + analysis
	s.mountMarket(s.r)

	// Auth + profile/stats (require auth)
	s.mountAuthRoutes()

	// JSON 404 for easier debugging
	s.r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"not_found","path":"`+r.URL.Path+`"}`, http.StatusNotFound)
	})

	return s
}

// Start begins serving HTTP on addr.
func (s *Server) Start(addr string) error { return http.ListenAndServe(addr, s.r) }

// Router exposes the internal router (useful for tests).
func (s *Server) Router() chi.Router { return s.r }

// ----------------------------- middleware ----------------------------------

// jsonContentType sets a default JSON Content-Type header on all responses.
func jsonContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		next.ServeHTTP(w, r)
	})
}

// corsFromEnv enables credentialed CORS for a single origin.
// Uses CLIENT_ORIGIN env var; defaults to http://localhost:5173.
func corsFromEnv(next http.Handler) http.Handler {
	origin := os.Getenv("CLIENT_ORIGIN")
	if origin == "" {
		origin = "http://localhost:5173"
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Vary", "Origin")
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Credentials", "true")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ------------------------------ GAME ---------------------------------------

// stateRes is the rendering snapshot returned by game endpoints.
type stateRes struct {
	GameID        string      `json:"gameId"`
	Mode          game.Mode   `json:"mode"`
	TurnNumber    int         `json:"turnNumber"`
	ActivePlayer  game.Player `json:"activePlayer"`
	LastWord      string      `json:"lastWord,omitempty"`
	RequiredStart string      `json:"requiredStart,omitempty"`
	Over          bool        `json:"over"`
	Message       string      `json:"message"`
	History       []string    `json:"history"` // most recent first
}

// snapshot renders a session for clients. History is reversed so the
// latest word comes first.
func snapshot(g *game.State) stateRes {
	hist := make([]string, len(g.History))
	for i, w := range g.History {
		hist[len(g.History)-1-i] = w
	}
	res := stateRes{
		GameID:       g.ID,
		Mode:         g.Mode,
		TurnNumber:   g.TurnNumber,
		ActivePlayer: g.ActivePlayer,
		LastWord:     g.LastWord,
		Over:         g.Over,
		Message:      g.LastMessage,
		History:      hist,
	}
	if r := g.RequiredStart(); r != 0 {
		res.RequiredStart = string(r)
	}
	return res
}

// sessionLock returns the mutex serializing submissions for a session.
func (s *Server) sessionLock(id string) *sync.Mutex {
	mu, _ := s.locks.LoadOrStore(id, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// newGameReq/Res payloads for POST /game/new.
type newGameReq struct {
	Mode           string `json:"mode"`           // "solo" | "two_player"
	StartingPlayer string `json:"startingPlayer"` // "A" | "B" (two-player only)
}
type newGameRes struct {
	GameID string   `json:"gameId"`
	State  stateRes `json:"state"`
}

// handleNewGame creates a new in-memory session and persists a DB
// "owner" row (either user_id or anonymous_id) for history/stats.
func (s *Server) handleNewGame(w http.ResponseWriter, r *http.Request) {
	var req newGameReq
	_ = json.NewDecoder(r.Body).Decode(&req)

	g := game.New(game.Mode(req.Mode), game.Player(req.StartingPlayer))
	if err := s.store.Save(r.Context(), g); err != nil {
		log.Error().Err(err).Msg("save session")
		http.Error(w, `{"error":"save_failed"}`, http.StatusInternalServerError)
		return
	}

	s.insertOwnerRow(w, r, g)
	_ = json.NewEncoder(w).Encode(newGameRes{GameID: g.ID, State: snapshot(g)})
}

// insertOwnerRow records who started a game (best effort, non-fatal).
func (s *Server) insertOwnerRow(w http.ResponseWriter, r *http.Request, g *game.State) {
	now := time.Now().UTC().Format(time.RFC3339)
	if me, _ := r.Context().Value(ctxUserKey{}).(*authUser); me != nil {
		_, err := s.db.Exec(`INSERT INTO games (id, user_id, mode, status, words, started_at)
		                     VALUES (?,?,?,?,0,?)`, g.ID, me.ID, string(g.Mode), "playing", now)
		if err != nil {
			log.Warn().Err(err).Str("gameId", g.ID).Msg("insert user game row")
		}
	} else {
		anon := s.ensureAnonID(w, r)
		_, err := s.db.Exec(`INSERT INTO games (id, anonymous_id, mode, status, words, started_at)
		                     VALUES (?,?,?,?,0,?)`, g.ID, anon, string(g.Mode), "playing", now)
		if err != nil {
			log.Warn().Err(err).Str("gameId", g.ID).Msg("insert anon game row")
		}
	}
}

// wordReq/Res payloads for POST /game/word.
type wordReq struct {
	GameID string `json:"gameId"`
	Word   string `json:"word"`
}
type wordRes struct {
	Outcome game.Outcome `json:"outcome"`
	State   stateRes     `json:"state"`
}

// handleWord applies one submission to a session, persists progress,
// and (if the chain ended) finishes the DB row and updates user stats
// in a best-effort transaction.
func (s *Server) handleWord(w http.ResponseWriter, r *http.Request) {
	var req wordReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"bad_json"}`, http.StatusBadRequest)
		return
	}
	g, err := s.store.Get(r.Context(), req.GameID)
	if err != nil {
		http.Error(w, `{"error":"not_found"}`, http.StatusNotFound)
		return
	}

	mu := s.sessionLock(g.ID)
	mu.Lock()
	if g.Over {
		mu.Unlock()
		s.locks.Delete(g.ID)
		// Terminal sessions never reach the engine; start a new game
		// or reset instead.
		http.Error(w, `{"error":"game_over"}`, http.StatusConflict)
		return
	}
	// Render the snapshot and capture the chain length before releasing
	// the lock; a concurrent submission may mutate the session right after.
	out := g.SubmitWord(req.Word)
	snap := snapshot(g)
	chain := len(g.History)
	mu.Unlock()

	// A terminal session takes no further submissions, so its mutex
	// entry can go. /game/state still serves the frozen snapshot.
	if out.Kind == game.OutcomeGameOver {
		s.locks.Delete(g.ID)
	}

	if err := s.store.Save(r.Context(), g); err != nil {
		http.Error(w, `{"error":"save_failed"}`, http.StatusInternalServerError)
		return
	}

	s.persistOutcome(w, r, g.ID, out, chain)
	s.hub.broadcast(g.ID, snap)

	_ = json.NewEncoder(w).Encode(wordRes{Outcome: out, State: snap})
}

// persistOutcome records counters/history (best effort, non-fatal if it fails).
// chain is the history length captured under the session lock.
func (s *Server) persistOutcome(w http.ResponseWriter, r *http.Request, gameID string, out game.Outcome, chain int) {
	if out.Kind == game.OutcomeRejected {
		return // soft validation failure, nothing to record
	}

	me, _ := r.Context().Value(ctxUserKey{}).(*authUser)
	ownerClause := `anonymous_id=?`
	ownerArg := any(s.ensureAnonID(w, r))
	if me != nil {
		ownerClause = `user_id=?`
		ownerArg = any(me.ID)
	}

	tx, err := s.db.Begin()
	if err != nil {
		log.Warn().Err(err).Msg("begin persist tx")
		return
	}
	defer func() { _ = tx.Rollback() }()

	if out.Kind == game.OutcomeAccepted {
		if _, err := tx.Exec(`UPDATE games SET words = words + 1, last_word=? WHERE id=? AND `+ownerClause,
			out.Word, gameID, ownerArg); err != nil {
			log.Warn().Err(err).Msg("update words")
		}
	}

	if out.Kind == game.OutcomeGameOver {
		if _, err := tx.Exec(`UPDATE games SET status='finished', ended_reason=?, finished_at=? WHERE id=? AND `+ownerClause,
			string(out.Reason), time.Now().UTC().Format(time.RFC3339), gameID, ownerArg); err != nil {
			log.Warn().Err(err).Msg("finish game")
		}
		if me != nil {
			if err := s.bumpStats(tx, me.ID, chain); err != nil {
				log.Warn().Err(err).Str("user", me.ID).Msg("bump stats")
			}
		}
	}
	_ = tx.Commit()
}

// resetReq payload for POST /game/reset.
type resetReq struct {
	GameID         string `json:"gameId"`
	Mode           string `json:"mode"`           // optional; defaults to the old session's mode
	StartingPlayer string `json:"startingPlayer"` // optional
}

// handleReset discards a session and replaces it wholesale with a
// fresh one, per the explicit reset action.
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	var req resetReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"bad_json"}`, http.StatusBadRequest)
		return
	}
	old, err := s.store.Get(r.Context(), req.GameID)
	if err != nil {
		http.Error(w, `{"error":"not_found"}`, http.StatusNotFound)
		return
	}

	mu := s.sessionLock(old.ID)
	mu.Lock()
	mode := old.Mode
	mu.Unlock()
	if req.Mode != "" {
		mode = game.Mode(req.Mode)
	}
	starting := game.Player(req.StartingPlayer)

	g := game.New(mode, starting)
	if err := s.store.Save(r.Context(), g); err != nil {
		http.Error(w, `{"error":"save_failed"}`, http.StatusInternalServerError)
		return
	}
	_ = s.store.Delete(r.Context(), old.ID)
	s.locks.Delete(old.ID)
	s.hub.closeSession(old.ID)

	s.insertOwnerRow(w, r, g)
	_ = json.NewEncoder(w).Encode(newGameRes{GameID: g.ID, State: snapshot(g)})
}

// handleState returns the rendering snapshot for a session.
func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("gameId")
	g, err := s.store.Get(r.Context(), id)
	if err != nil {
		http.Error(w, `{"error":"not_found"}`, http.StatusNotFound)
		return
	}
	mu := s.sessionLock(g.ID)
	mu.Lock()
	snap := snapshot(g)
	mu.Unlock()
	if snap.Over {
		// Finished sessions keep no mutex entry.
		s.locks.Delete(g.ID)
	}
	_ = json.NewEncoder(w).Encode(snap)
}

// lbRow is one leaderboard entry: the longest finished chains.
type lbRow struct {
	Player   string `json:"player"`
	Mode     string `json:"mode"`
	Words    int    `json:"words"`
	LastWord string `json:"lastWord,omitempty"`
}

// handleLeaderboard returns the longest finished chains.
func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}
	rows, err := s.db.QueryContext(r.Context(), `
        SELECT COALESCE(u.username, 'anonymous'), g.mode, g.words, COALESCE(g.last_word, '')
        FROM games g LEFT JOIN users u ON g.user_id = u.id
        WHERE g.status = 'finished' AND g.words > 0
        ORDER BY g.words DESC, g.finished_at ASC
        LIMIT ?`, limit)
	if err != nil {
		http.Error(w, `{"error":"db_error"}`, http.StatusInternalServerError)
		return
	}
	defer rows.Close()

	out := []lbRow{}
	for rows.Next() {
		var e lbRow
		if err := rows.Scan(&e.Player, &e.Mode, &e.Words, &e.LastWord); err == nil {
			out = append(out, e)
		}
	}
	_ = json.NewEncoder(w).Encode(map[string]any{"top": out})
}

// ------------------------------- AUTH --------------------------------------

// Request payloads for signup/login.
type signupReq struct{ Username, Password string }
type loginReq struct{ Username, Password string }

// authUser is placed into request context by auth middleware.
type authUser struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// mountAuthRoutes registers authentication + gated routes (/auth/*, /stats/me, /games/mine).
func (s *Server) mountAuthRoutes() {
	s.r.Post("/auth/signup", s.handleSignup)
	s.r.Post("/auth/login", s.handleLogin)
	s.r.Post("/auth/logout", s.handleLogout)

	// Current user (gated)
	s.r.With(s.requireAuth()).Get("/auth/me", func(w http.ResponseWriter, r *http.Request) {
		me, _ := r.Context().Value(ctxUserKey{}).(*authUser)
		if me == nil {
			http.Error(w, `{"error":"Unauthorized"}`, http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(me)
	})

	// Stats (gated)
	s.r.With(s.requireAuth()).Get("/stats/me", func(w http.ResponseWriter, r *http.Request) {
		me, _ := r.Context().Value(ctxUserKey{}).(*authUser)
		if me == nil {
			http.Error(w, `{"error":"Unauthorized"}`, http.StatusUnauthorized)
			return
		}
		u, err := s.findUserByID(me.ID)
		if err != nil {
			http.Error(w, `{"error":"not_found"}`, http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":          u.ID,
			"gamesPlayed": u.GamesPlayed,
			"bestChain":   u.BestChain,
			"totalWords":  u.TotalWords,
		})
	})

	// Recent games (gated)
	s.r.With(s.requireAuth()).Get("/games/mine", func(w http.ResponseWriter, r *http.Request) {
		me, _ := r.Context().Value(ctxUserKey{}).(*authUser)
		if me == nil {
			http.Error(w, `{"error":"Unauthorized"}`, http.StatusUnauthorized)
			return
		}
		rows, err := s.db.Query(`SELECT id, mode, status, words, COALESCE(ended_reason,''), started_at, COALESCE(finished_at,'')
		                         FROM games WHERE user_id=? ORDER BY started_at DESC LIMIT 50`, me.ID)
		if err != nil {
			http.Error(w, `{"error":"db_error"}`, http.StatusInternalServerError)
			return
		}
		defer rows.Close()

		type gameRow struct {
			ID          string `json:"id"`
			Mode        string `json:"mode"`
			Status      string `json:"status"`
			Words       int    `json:"words"`
			EndedReason string `json:"endedReason,omitempty"`
			StartedAt   string `json:"startedAt"`
			FinishedAt  string `json:"finishedAt,omitempty"`
		}
		out := []gameRow{}
		for rows.Next() {
			var gr gameRow
			if err := rows.Scan(&gr.ID, &gr.Mode, &gr.Status, &gr.Words, &gr.EndedReason, &gr.StartedAt, &gr.FinishedAt); err == nil {
				out = append(out, gr)
			}
		}
		_ = json.NewEncoder(w).Encode(out)
	})
}

// handleSignup creates a new user, signs a JWT, sets auth cookie, and claims anon history.
func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var body signupReq
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, `{"error":"invalid_json"}`, http.StatusBadRequest)
		return
	}
	u, err := s.createUser(body.Username, body.Password)
	if err != nil {
		if errors.Is(err, errUsernameTaken) {
			http.Error(w, `{"error":"username already taken"}`, http.StatusConflict)
			return
		}
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusBadRequest)
		return
	}
	tok, exp, err := s.signJWT(u.ID, u.Username)
	if err != nil {
		http.Error(w, `{"error":"sign_failed"}`, http.StatusInternalServerError)
		return
	}
	s.setAuthCookie(w, tok, exp)
	// Attach any anonymous games to the new account
	s.claimAnonGames(s.ensureAnonID(w, r), u.ID)
	_ = json.NewEncoder(w).Encode(map[string]any{"id": u.ID, "username": u.Username, "createdAt": u.CreatedAt})
}

// handleLogin authenticates user, sets cookie, and claims anon history.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body loginReq
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, `{"error":"invalid_json"}`, http.StatusBadRequest)
		return
	}
	u, err := s.findUserByUsername(strings.TrimSpace(body.Username))
	if err != nil || !checkPassword(u.PasswordHash, body.Password) {
		http.Error(w, `{"error":"invalid credentials"}`, http.StatusUnauthorized)
		return
	}
	tok, exp, err := s.signJWT(u.ID, u.Username)
	if err != nil {
		http.Error(w, `{"error":"sign_failed"}`, http.StatusInternalServerError)
		return
	}
	s.setAuthCookie(w, tok, exp)
	s.claimAnonGames(s.ensureAnonID(w, r), u.ID)
	_ = json.NewEncoder(w).Encode(map[string]any{"id": u.ID, "username": u.Username})
}

// handleLogout clears the auth cookie.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.clearAuthCookie(w)
	_ = json.NewEncoder(w).Encode(map[string]bool{"ok": true})
}

// --------------------------- optional auth ---------------------------------

// withOptionalAuth decorates requests with user context if a valid JWT is present.
// It never 401s; used for routes where guests are allowed.
func (s *Server) withOptionalAuth() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if tok := bearerOrCookie(r); tok != "" {
				claims := jwt.MapClaims{}
				if t, err := jwt.ParseWithClaims(tok, claims, func(t *jwt.Token) (interface{}, error) {
					return []byte(getEnv("JWT_SECRET", "dev_secret_change_me")), nil
				}); err == nil && t.Valid {
					if id, _ := claims["id"].(string); id != "" {
						if u, err := s.findUserByID(id); err == nil {
							ctx := context.WithValue(r.Context(), ctxUserKey{}, &authUser{ID: u.ID, Username: u.Username})
							r = r.WithContext(ctx)
						}
					}
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

const anonCookieName = "wordchain_anon"

// cookieMode returns the Secure/SameSite pair for the current deploy mode.
// Production serves cross-site, so cookies need Secure + SameSite=None.
func cookieMode() (bool, http.SameSite) {
	if os.Getenv("APP_ENV") == "production" {
		return true, http.SameSiteNoneMode
	}
	return false, http.SameSiteLaxMode
}

// ensureAnonID returns an existing anon cookie or sets a new one.
// Used to associate guest games with a stable identifier.
func (s *Server) ensureAnonID(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(anonCookieName); err == nil && c.Value != "" {
		return c.Value
	}
	id := genID()
	secure, sameSite := cookieMode()
	http.SetCookie(w, &http.Cookie{
		Name:     anonCookieName,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: sameSite,
		Expires:  time.Now().Add(180 * 24 * time.Hour),
	})
	return id
}

// claimAnonGames transfers any anonymous games to a user account after auth.
func (s *Server) claimAnonGames(anonID, userID string) {
	if anonID == "" || userID == "" {
		return
	}
	if _, err := s.db.Exec(`UPDATE games SET user_id=?, anonymous_id=NULL WHERE anonymous_id=?`, userID, anonID); err != nil {
		log.Warn().Err(err).Msg("claim anon games")
	}
}

// ------------------------ auth helpers & users -----------------------------

// userRow matches the users table shape.
type userRow struct {
	ID           string
	Username     string
	PasswordHash string
	CreatedAt    time.Time
	GamesPlayed  int
	BestChain    int
	TotalWords   int
}

// errUsernameTaken maps to 409 in the signup handler.
var errUsernameTaken = errors.New("username already taken")

// createUser validates input, checks uniqueness, hashes password, and inserts a new user.
func (s *Server) createUser(username, pw string) (*userRow, error) {
	username = normalizeUsername(username)
	if err := validateSignup(username, pw); err != nil {
		return nil, err
	}
	var exists int
	_ = s.db.QueryRow(`SELECT 1 FROM users WHERE lower(username)=lower(?)`, username).Scan(&exists)
	if exists == 1 {
		return nil, errUsernameTaken
	}
	h, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC().Format(time.RFC3339)
	id := genID()
	if _, err := s.db.Exec(`INSERT INTO users (id, username, password_hash, created_at) VALUES (?,?,?,?)`,
		id, username, string(h), now); err != nil {
		return nil, err
	}
	return &userRow{ID: id, Username: username, PasswordHash: string(h), CreatedAt: mustParse(now)}, nil
}

// findUserByUsername/ID load a user row or return an error if missing.
func (s *Server) findUserByUsername(username string) (*userRow, error) {
	row := s.db.QueryRow(`SELECT id, username, password_hash, created_at, games_played, best_chain, total_words
	                      FROM users WHERE lower(username)=lower(?)`, username)
	return scanUser(row)
}
func (s *Server) findUserByID(id string) (*userRow, error) {
	row := s.db.QueryRow(`SELECT id, username, password_hash, created_at, games_played, best_chain, total_words
	                      FROM users WHERE id=?`, id)
	return scanUser(row)
}

// scanUser converts a *sql.Row into a userRow.
func scanUser(row *sql.Row) (*userRow, error) {
	var u userRow
	var created string
	if err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &created, &u.GamesPlayed, &u.BestChain, &u.TotalWords); err != nil {
		return nil, err
	}
	u.CreatedAt = mustParse(created)
	return &u, nil
}

// mustParse parses RFC3339 timestamps; on error returns zero time.
func mustParse(s string) time.Time {
	t, _ := time.Parse(time.RFC3339, s)
	return t
}

// checkPassword is a bcrypt verifier.
func checkPassword(hash, pw string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pw)) == nil
}

// normalizeUsername trims whitespace; adjust here if you want stricter rules.
func normalizeUsername(u string) string {
	return strings.TrimSpace(u)
}

// validateSignup enforces basic username/password rules.
func validateSignup(u, p string) error {
	if len(u) < 3 || len(u) > 24 {
		return errors.New("username must be between 3 and 24 characters")
	}
	for _, r := range u {
		if !usernameRune(r) {
			return errors.New("username may only contain letters, digits, and underscores")
		}
	}
	if len(p) < 8 || len(p) > 100 {
		return errors.New("password must be between 8 and 100 characters")
	}
	return nil
}

func usernameRune(r rune) bool {
	return r == '_' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9'
}

// genID creates a 22-char URL-safe, crypto-random identifier (no padding).
func genID() string {
	var b [16]byte
	_, _ = rand.Read(b[:])
	s := base64.URLEncoding.WithPadding(base64.NoPadding).EncodeToString(b[:])
	if len(s) > 22 {
		return s[:22]
	}
	return s
}

// bumpStats increments games played, adds the chain length to the word
// total, and raises the best chain if beaten (within tx).
func (s *Server) bumpStats(tx *sql.Tx, userID string, words int) error {
	var gp, best, total int
	row := tx.QueryRow(`SELECT games_played, best_chain, total_words FROM users WHERE id=?`, userID)
	if err := row.Scan(&gp, &best, &total); err != nil {
		return err
	}
	gp++
	total += words
	if words > best {
		best = words
	}
	_, err := tx.Exec(`UPDATE users SET games_played=?, best_chain=?, total_words=? WHERE id=?`, gp, best, total, userID)
	return err
}

// ------------------------------ JWT & cookies ------------------------------

// signJWT creates an HS256 JWT with id/username and a configurable expiry
// (SESSION_TTL as a Go duration; default two weeks).
func (s *Server) signJWT(id, username string) (string, time.Time, error) {
	secret := getEnv("JWT_SECRET", "dev_secret_change_me")
	ttl := 14 * 24 * time.Hour
	if v := os.Getenv("SESSION_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			ttl = d
		}
	}
	exp := time.Now().Add(ttl)
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"id":       id,
		"username": username,
		"exp":      exp.Unix(),
		"iat":      time.Now().Unix(),
	})
	ss, err := t.SignedString([]byte(secret))
	return ss, exp, err
}

// setAuthCookie writes the auth token cookie with appropriate security attributes.
func (s *Server) setAuthCookie(w http.ResponseWriter, token string, exp time.Time) {
	secure, sameSite := cookieMode()
	http.SetCookie(w, &http.Cookie{
		Name:     getEnv("COOKIE_NAME", "wordchain_token"),
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: sameSite,
		Expires:  exp,
	})
}

// clearAuthCookie deletes the auth token cookie.
func (s *Server) clearAuthCookie(w http.ResponseWriter) {
	secure, sameSite := cookieMode()
	http.SetCookie(w, &http.Cookie{
		Name:     getEnv("COOKIE_NAME", "wordchain_token"),
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: sameSite,
		MaxAge:   -1,
	})
}

// bearerOrCookie extracts a bearer token from Authorization header or auth cookie.
func bearerOrCookie(r *http.Request) string {
	// Authorization: Bearer <token>
	if a := r.Header.Get("Authorization"); strings.HasPrefix(strings.ToLower(a), "bearer ") {
		return strings.TrimSpace(a[7:])
	}
	if c, err := r.Cookie(getEnv("COOKIE_NAME", "wordchain_token")); err == nil {
		return c.Value
	}
	return ""
}

// ---------------------------- auth middleware ------------------------------

// ctxUserKey is the context key type for storing authUser.
type ctxUserKey struct{}

// requireAuth enforces a valid JWT and injects authUser into request context.
func (s *Server) requireAuth() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenStr := bearerOrCookie(r)
			if tokenStr == "" {
				http.Error(w, `{"error":"Unauthorized"}`, http.StatusUnauthorized)
				return
			}
			claims := jwt.MapClaims{}
			token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
				return []byte(getEnv("JWT_SECRET", "dev_secret_change_me")), nil
			})
			if err != nil || !token.Valid {
				http.Error(w, `{"error":"Invalid token"}`, http.StatusUnauthorized)
				return
			}
			id, _ := claims["id"].(string)
			username, _ := claims["username"].(string)
			if id == "" || username == "" {
				http.Error(w, `{"error":"Invalid token"}`, http.StatusUnauthorized)
				return
			}
			// Ensure user still exists
			if _, err := s.findUserByID(id); err != nil {
				http.Error(w, `{"error":"Invalid token"}`, http.StatusUnauthorized)
				return
			}
			ctx := context.WithValue(r.Context(), ctxUserKey{}, &authUser{ID: id, Username: username})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ------------------------------- small util --------------------------------

// getEnv returns the value of k or def if unset/empty.
func getEnv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
