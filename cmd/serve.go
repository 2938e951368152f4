package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/flo2d-schematizer/internal/config"
	"github.com/sells-group/flo2d-schematizer/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the derived tables over a read-only HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if servePort != 0 {
			cfg.Server.Port = servePort
		}
		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:           buildRouter(st, cfg.Server),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			srv.Shutdown(ctx) //nolint:errcheck
		}()

		zap.L().Info("starting server", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}
		return nil
	},
}

// buildRouter wires the API routes behind CORS and a request limiter.
func buildRouter(st store.Store, sc config.ServerConfig) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: sc.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))
	r.Use(rateLimit(sc.RateLimit, sc.Burst))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Route("/api/tables", func(r chi.Router) {
		r.Get("/", listTables)
		r.Get("/{table}", queryTable(st))
	})
	return r
}

// rateLimit rejects requests beyond rps with 429. A non-positive rps
// disables the limit.
func rateLimit(rps float64, burst int) func(http.Handler) http.Handler {
	limit := rate.Limit(rps)
	if rps <= 0 {
		limit = rate.Inf
	}
	if burst <= 0 {
		burst = 1
	}
	lim := rate.NewLimiter(limit, burst)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !lim.Allow() {
				writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type columnInfo struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Geometry bool   `json:"geometry,omitempty"`
}

type tableInfo struct {
	Name    string       `json:"name"`
	Columns []columnInfo `json:"columns"`
}

func listTables(w http.ResponseWriter, _ *http.Request) {
	var out []tableInfo
	for _, name := range store.Tables() {
		cols, _ := store.Columns(name)
		info := tableInfo{Name: name}
		for _, c := range cols {
			info.Columns = append(info.Columns, columnInfo{Name: c.Name, Type: string(c.Type), Geometry: c.Geometry})
		}
		out = append(out, info)
	}
	writeJSON(w, http.StatusOK, map[string]any{"tables": out})
}

// queryTable returns the committed rows of a table. Query parameters are
// equality filters on columns.
func queryTable(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		table := chi.URLParam(r, "table")
		cols, err := store.Columns(table)
		if err != nil {
			writeError(w, http.StatusNotFound, fmt.Sprintf("unknown table %q", table))
			return
		}
		byName := make(map[string]store.Column, len(cols))
		for _, c := range cols {
			byName[c.Name] = c
		}

		filter := store.Filter{}
		params := r.URL.Query()
		keys := make([]string, 0, len(params))
		for k := range params {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			c, ok := byName[k]
			if !ok {
				writeError(w, http.StatusBadRequest, fmt.Sprintf("table %s has no column %q", table, k))
				return
			}
			v := params.Get(k)
			if _, err := store.Coerce(c, v); err != nil {
				writeError(w, http.StatusBadRequest, fmt.Sprintf("bad value for %s: %q", k, v))
				return
			}
			filter[k] = v
		}

		rows, err := st.Query(r.Context(), table, filter)
		if err != nil {
			zap.L().Error("serve: query failed", zap.String("table", table), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "query failed")
			return
		}
		if rows == nil {
			rows = []store.Row{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"table": table, "count": len(rows), "rows": rows})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
