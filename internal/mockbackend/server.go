/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Package mockbackend provides an in-process admin backend for tests and demos.
// It issues HS256 JWT access tokens and opaque refresh tokens and lets the caller
// expire or revoke them to drive the client through the refresh path.
package mockbackend

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/atomic"

	"github.com/acronis/go-adminclient/log"
)

// Default values of Opts.
const (
	DefaultAccessTokenTTL = 15 * time.Minute
	DefaultPageSize       = 10
)

// User is an account of the admin backend.
type User struct {
	ID           int    `json:"id"`
	Username     string `json:"username"`
	Name         string `json:"name"`
	DepartmentID int    `json:"departmentId"`
	password     string
}

// Department is an organizational unit.
type Department struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// Page is a paged list of users.
type Page struct {
	List  []User `json:"list"`
	Total int    `json:"total"`
	Page  int    `json:"page"`
	Size  int    `json:"size"`
}

type loginData struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refreshToken"`
	ID           int    `json:"id"`
	Username     string `json:"username"`
	Name         string `json:"name"`
}

type refreshData struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refreshToken"`
}

// Opts represents options of the Server.
type Opts struct {
	// Delay is added to every request of the protected endpoints.
	Delay time.Duration

	// SigningKey signs access tokens. A random key is used by default.
	SigningKey []byte

	AccessTokenTTL time.Duration

	Logger log.FieldLogger
}

// Server is the mock admin backend. It implements http.Handler.
type Server struct {
	router chi.Router
	tokens tokenIssuer
	logger log.FieldLogger
	delay  *atomic.Duration

	mu            sync.Mutex
	generation    uint64
	refreshTokens map[string]int // refresh token -> user ID
	users         []User
	departments   []Department

	forbidden    *atomic.Bool
	refreshCalls *atomic.Int32
	inFlight     *atomic.Int32
	maxInFlight  *atomic.Int32
}

// New creates a new Server with one administrator account (admin/admin) and a set of demo users.
func New(opts Opts) *Server {
	if opts.Logger == nil {
		opts.Logger = log.NewDisabledLogger()
	}
	if opts.AccessTokenTTL <= 0 {
		opts.AccessTokenTTL = DefaultAccessTokenTTL
	}
	if len(opts.SigningKey) == 0 {
		opts.SigningKey = []byte(newSigningKey())
	}

	s := &Server{
		tokens:        tokenIssuer{key: opts.SigningKey, ttl: opts.AccessTokenTTL},
		logger:        opts.Logger,
		delay:         atomic.NewDuration(opts.Delay),
		refreshTokens: make(map[string]int),
		departments:   []Department{{ID: 1, Name: "Operations"}, {ID: 2, Name: "Engineering"}, {ID: 3, Name: "Finance"}},
		forbidden:     atomic.NewBool(false),
		refreshCalls:  atomic.NewInt32(0),
		inFlight:      atomic.NewInt32(0),
		maxInFlight:   atomic.NewInt32(0),
	}
	s.users = append(s.users, User{ID: 1, Username: "admin", Name: "Administrator", DepartmentID: 1, password: "admin"})
	for i := 2; i <= 25; i++ {
		s.users = append(s.users, User{
			ID:           i,
			Username:     fmt.Sprintf("user%02d", i),
			Name:         fmt.Sprintf("User %02d", i),
			DepartmentID: 1 + i%len(s.departments),
			password:     fmt.Sprintf("user%02d", i),
		})
	}
	s.router = s.newRouter()
	return s
}

func (s *Server) newRouter() chi.Router {
	router := chi.NewRouter()
	router.Use(s.logging)
	router.Route("/user", func(r chi.Router) {
		r.Put("/login", s.handleLogin)
		r.Get("/refresh-token", s.handleRefresh)
		r.Group(func(r chi.Router) {
			r.Use(s.trackInFlight, s.authenticate)
			r.Get("/query", s.handleQuery)
			r.Get("/department/", s.handleDepartments)
		})
	})
	return router
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(rw, r)
}

// ExpireAccessTokens makes all issued access tokens invalid, clients have to refresh them.
func (s *Server) ExpireAccessTokens() {
	s.mu.Lock()
	s.generation++
	s.mu.Unlock()
}

// RevokeRefreshTokens makes all issued refresh tokens invalid, clients have to log in again.
func (s *Server) RevokeRefreshTokens() {
	s.mu.Lock()
	s.refreshTokens = make(map[string]int)
	s.mu.Unlock()
}

// ForceForbidden makes protected endpoints report the session as forbidden.
func (s *Server) ForceForbidden(forbidden bool) {
	s.forbidden.Store(forbidden)
}

// SetDelay changes the delay of protected endpoints.
func (s *Server) SetDelay(d time.Duration) {
	s.delay.Store(d)
}

// RefreshCalls returns the number of refresh requests served.
func (s *Server) RefreshCalls() int {
	return int(s.refreshCalls.Load())
}

// MaxInFlight returns the maximum number of protected requests served concurrently.
func (s *Server) MaxInFlight() int {
	return int(s.maxInFlight.Load())
}

func (s *Server) handleLogin(rw http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	username, password := query.Get("username"), query.Get("password")

	s.mu.Lock()
	user, ok := s.findUserLocked(func(u User) bool { return u.Username == username && u.password == password })
	gen := s.generation
	s.mu.Unlock()
	if !ok {
		respondError(rw, http.StatusBadRequest, "invalid username or password", s.logger)
		return
	}

	accessToken, err := s.tokens.issueAccessToken(user, gen)
	if err != nil {
		s.logger.Error("failed to issue access token", log.Error(err))
		respondError(rw, http.StatusInternalServerError, "internal error", s.logger)
		return
	}
	refreshToken := s.tokens.issueRefreshToken()
	s.mu.Lock()
	s.refreshTokens[refreshToken] = user.ID
	s.mu.Unlock()

	respondOK(rw, loginData{
		Token:        accessToken,
		RefreshToken: refreshToken,
		ID:           user.ID,
		Username:     user.Username,
		Name:         user.Name,
	}, s.logger)
}

func (s *Server) handleRefresh(rw http.ResponseWriter, r *http.Request) {
	s.refreshCalls.Inc()
	oldToken := credentialFromHeader(r)

	s.mu.Lock()
	userID, ok := s.refreshTokens[oldToken]
	if ok {
		delete(s.refreshTokens, oldToken)
	}
	user, _ := s.findUserLocked(func(u User) bool { return u.ID == userID })
	gen := s.generation
	s.mu.Unlock()
	if !ok {
		respondError(rw, http.StatusUnauthorized, "refresh token is invalid", s.logger)
		return
	}
	if id := r.URL.Query().Get("userId"); id != "" && id != strconv.Itoa(userID) {
		respondError(rw, http.StatusUnauthorized, "refresh token belongs to another user", s.logger)
		return
	}

	accessToken, err := s.tokens.issueAccessToken(user, gen)
	if err != nil {
		s.logger.Error("failed to issue access token", log.Error(err))
		respondError(rw, http.StatusInternalServerError, "internal error", s.logger)
		return
	}
	refreshToken := s.tokens.issueRefreshToken()
	s.mu.Lock()
	s.refreshTokens[refreshToken] = userID
	s.mu.Unlock()

	respondOK(rw, refreshData{Token: accessToken, RefreshToken: refreshToken}, s.logger)
}

func (s *Server) handleQuery(rw http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	page := positiveIntOr(query.Get("page"), 1)
	size := positiveIntOr(query.Get("size"), DefaultPageSize)
	department := positiveIntOr(query.Get("departmentId"), 0)

	s.mu.Lock()
	var matched []User
	for _, u := range s.users {
		if department == 0 || u.DepartmentID == department {
			matched = append(matched, u)
		}
	}
	s.mu.Unlock()

	result := Page{List: []User{}, Total: len(matched), Page: page, Size: size}
	if from := (page - 1) * size; from < len(matched) {
		result.List = matched[from:min(from+size, len(matched))]
	}
	respondOK(rw, result, s.logger)
}

func (s *Server) handleDepartments(rw http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	departments := append([]Department(nil), s.departments...)
	s.mu.Unlock()
	respondOK(rw, departments, s.logger)
}

func (s *Server) findUserLocked(match func(u User) bool) (User, bool) {
	for _, u := range s.users {
		if match(u) {
			return u, true
		}
	}
	return User{}, false
}

// authenticate rejects requests without a valid access token of the current generation.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		if s.forbidden.Load() {
			respondEnvelope(rw, http.StatusOK, Meta{Code: CodeForbidden, Msg: "session is forbidden"}, nil, s.logger)
			return
		}
		s.mu.Lock()
		gen := s.generation
		s.mu.Unlock()
		if _, err := s.tokens.verifyAccessToken(credentialFromHeader(r), gen); err != nil {
			s.logger.Debug("access token rejected", log.Error(err))
			respondError(rw, http.StatusUnauthorized, "token expired", s.logger)
			return
		}
		next.ServeHTTP(rw, r)
	})
}

// trackInFlight counts concurrent requests and applies the configured delay.
func (s *Server) trackInFlight(next http.Handler) http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		cur := s.inFlight.Inc()
		defer s.inFlight.Dec()
		for {
			maxVal := s.maxInFlight.Load()
			if cur <= maxVal || s.maxInFlight.CompareAndSwap(maxVal, cur) {
				break
			}
		}
		if d := s.delay.Load(); d > 0 {
			select {
			case <-time.After(d):
			case <-r.Context().Done():
				return
			}
		}
		next.ServeHTTP(rw, r)
	})
}

func (s *Server) logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		startTime := time.Now()
		next.ServeHTTP(rw, r)
		s.logger.Debug(fmt.Sprintf("mock backend served %s %s", r.Method, r.URL.Path),
			log.String("request_id", r.Header.Get("X-Request-ID")),
			log.DurationIn(time.Since(startTime), time.Millisecond))
	})
}

func credentialFromHeader(r *http.Request) string {
	v := r.Header.Get("Authorization")
	if len(v) > len("Bearer ") && strings.EqualFold(v[:len("Bearer ")], "Bearer ") {
		return v[len("Bearer "):]
	}
	return v
}

func positiveIntOr(s string, fallback int) int {
	v, err := strconv.Atoi(s)
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}
