package web

import (
	"context"
	"embed"
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/example/shift-sniper/internal/auth"
	"github.com/example/shift-sniper/internal/shiftheroes"
	"github.com/example/shift-sniper/internal/store"
)

//go:embed templates/*.html
var fs embed.FS

// Server is the read-only UI over race history and stored accounts, plus a
// live plannings snapshot when a viewer token is configured.
type Server struct {
	Auth *auth.Store
	Repo *store.Repo

	// Live is optional; without it the live view reports itself disabled.
	Live shiftheroes.API

	Log zerolog.Logger

	liveCache *cache.Cache
}

type tmplData struct {
	Title string
	User  int64
	Flash string

	Races     []store.RaceRecord
	Accounts  []store.Account
	Plannings []shiftheroes.Planning
	LiveOff   bool
}

func (s *Server) Routes() http.Handler {
	if s.liveCache == nil {
		s.liveCache = cache.New(5*time.Second, time.Minute)
	}

	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})

	mux.HandleFunc("/login", s.handleLogin)
	mux.HandleFunc("/logout", s.handleLogout)

	mux.Handle("/", s.Auth.RequireAuth(http.HandlerFunc(s.handleRaces)))
	mux.Handle("/accounts", s.Auth.RequireAuth(http.HandlerFunc(s.handleAccounts)))
	mux.Handle("/live", s.Auth.RequireAuth(CacheGET(s.liveCache, 5*time.Second, http.HandlerFunc(s.handleLive))))

	return RateLimit(rate.Limit(10), 20, mux)
}

func (s *Server) handleRaces(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	uid, _ := auth.UserIDFromContext(r.Context())
	races, err := s.Repo.ListRaces(r.Context(), 50)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.render(w, "templates/races.html", tmplData{Title: "Races", User: uid, Races: races})
}

func (s *Server) handleAccounts(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())
	accounts, err := s.Repo.ListAccounts(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	// Tokens stay out of the page; ciphertext is not interesting either.
	for i := range accounts {
		accounts[i].TokenCiphertext = ""
	}
	s.render(w, "templates/accounts.html", tmplData{Title: "Accounts", User: uid, Accounts: accounts})
}

func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())
	data := tmplData{Title: "Live", User: uid}
	if s.Live == nil {
		data.LiveOff = true
		s.render(w, "templates/live.html", data)
		return
	}
	plannings, err := s.Live.ListPlannings(r.Context())
	if err != nil {
		s.Log.Warn().Err(err).Msg("live plannings fetch failed")
		data.Flash = "Could not reach ShiftHeroes: " + err.Error()
	}
	data.Plannings = plannings
	s.render(w, "templates/live.html", data)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.render(w, "templates/login.html", tmplData{Title: "Login"})
	case http.MethodPost:
		if err := r.ParseForm(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		username := strings.TrimSpace(r.FormValue("username"))
		password := r.FormValue("password")
		id, err := s.Auth.Authenticate(r.Context(), username, password)
		if err != nil {
			s.render(w, "templates/login.html", tmplData{Title: "Login", Flash: "Invalid username/password"})
			return
		}
		if err := s.Auth.SetSession(w, r, id); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		http.Redirect(w, r, "/", http.StatusFound)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.Auth.ClearSession(w)
	http.Redirect(w, r, "/login", http.StatusFound)
}

func (s *Server) render(w http.ResponseWriter, name string, data tmplData) {
	t, err := template.ParseFS(fs, "templates/base.html", name)
	if err != nil {
		http.Error(w, "template error: "+err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := t.ExecuteTemplate(w, "base", data); err != nil {
		s.Log.Error().Err(err).Str("template", name).Msg("render failed")
	}
}

// Start runs the HTTP server until ctx is canceled.
func Start(ctx context.Context, addr string, h http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	return srv.ListenAndServe()
}
