package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"

	"blog/internal/auth"
	"blog/internal/config"
	"blog/internal/db"
	"blog/internal/redisstore"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "server",
	Short: "Blog API server",
	Long: `server runs the blog RPC API.

Configuration is read from the environment and from a .env file in the
working directory. Run "server check-config" to validate it without
starting the server.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd, checkConfigCmd, sessionsCmd)
}

func newLogger(cfg *config.Config) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel}))
}

// stores holds everything opened from configuration.
type stores struct {
	conn     *sql.DB
	users    *db.UserStore
	posts    *db.PostStore
	sessions auth.SessionStore
	backend  string
	redis    *redis.Client
}

// openStores opens and migrates the database and selects the session store:
// Redis when REDIS_URL is set, the sessions table otherwise.
func openStores(ctx context.Context, cfg *config.Config) (*stores, error) {
	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Migrate(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrating database: %w", err)
	}

	s := &stores{
		conn:     conn,
		users:    db.NewUserStore(conn, cfg.StoreTimeout),
		posts:    db.NewPostStore(conn, cfg.StoreTimeout),
		sessions: db.NewSessionStore(conn, cfg.StoreTimeout),
		backend:  "sqlite",
	}
	if cfg.RedisURL != "" {
		rdb, err := redisstore.Dial(ctx, cfg.RedisURL)
		if err != nil {
			conn.Close()
			return nil, err
		}
		s.redis = rdb
		s.sessions = redisstore.NewSessionStore(rdb, "blog:sess", cfg.StoreTimeout)
		s.backend = "redis"
	}
	return s, nil
}

func (s *stores) Close() {
	if s.redis != nil {
		s.redis.Close()
	}
	s.conn.Close()
}
