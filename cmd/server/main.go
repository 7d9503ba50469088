// Command server runs the undertone chat server. Main wires stores,
// services, and the HTTP router; business logic lives in the internal
// packages.
package main

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"undertone/internal/admin"
	"undertone/internal/audit"
	"undertone/internal/board"
	"undertone/internal/credential"
	"undertone/internal/keyring"
	"undertone/internal/lockout"
	"undertone/internal/platform/config"
	"undertone/internal/platform/httpserver"
	"undertone/internal/platform/logger"
	"undertone/internal/platform/metrics"
	platformpg "undertone/internal/platform/postgres"
	platformredis "undertone/internal/platform/redis"
	"undertone/internal/session"
	"undertone/internal/social"
	"undertone/internal/subject"
	httptransport "undertone/internal/transport/http"
	"undertone/internal/user"
)

const version = "1.0.0"

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.FromEnv()
	log := logger.New()
	mx := metrics.New(prometheus.DefaultRegisterer)

	creds := credential.Params{
		SecretSize:        cfg.SecretSize,
		Iterations:        cfg.KDFIterations,
		MinPasswordLength: cfg.PasswordMinLength,
	}
	policy := lockout.Policy{
		MaxAttempts:  cfg.PasswordMaxAttempts,
		LockDuration: cfg.PasswordLockTime,
	}

	// Stores: postgres and redis when configured, in-memory otherwise.
	var (
		userStore    user.Store    = user.NewInMemoryStore()
		adminStore   admin.Store   = admin.NewInMemoryStore()
		auditStore   audit.Store   = audit.NewInMemoryStore()
		sessionStore session.Store = session.NewInMemoryStore()
	)
	if cfg.PostgresURL != "" {
		db, err := platformpg.Open(cfg.PostgresURL)
		if err != nil {
			return fmt.Errorf("open postgres: %w", err)
		}
		defer db.Close()
		if err := platformpg.EnsureSchema(context.Background(), db); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
		userStore = user.NewPostgresStore(db)
		adminStore = admin.NewPostgresStore(db)
		auditStore = audit.NewPostgresStore(db)
		log.Info("postgres store enabled")
	}
	if cfg.RedisURL != "" {
		client, err := platformredis.New(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("open redis: %w", err)
		}
		defer client.Close()
		sessionStore = session.NewRedisStore(client.Client, 0)
		log.Info("redis session store enabled")
	}

	// The session manager is built first; its subject resolver and
	// presence sink are filled in once the services exist.
	resolver := &subject.Resolver{}
	presence := &subject.Presence{}
	sessions := session.New(sessionStore, resolver,
		session.WithLogger(log),
		session.WithMetrics(mx),
		session.WithPresenceSink(presence),
		session.WithTTL(session.KindUser, cfg.UserSessionTTL),
		session.WithTTL(session.KindAdmin, cfg.AdminSessionTTL),
	)

	auditLogger := audit.New(auditStore, audit.WithLogger(log), audit.WithMetrics(mx))
	keys := keyring.New(keyring.NewInMemoryStore(), keyring.WithLogger(log), keyring.WithPageSize(cfg.PageSize))

	directory := &subject.Directory{}
	socials := social.New(social.NewInMemoryStore(),
		social.WithLogger(log),
		social.WithPageSize(cfg.PageSize),
		social.WithDirectory(directory),
	)

	users := user.New(userStore, sessions,
		user.WithLogger(log),
		user.WithMetrics(mx),
		user.WithCredentialParams(creds),
		user.WithLockoutPolicy(policy),
		user.WithKeySink(keys),
		user.WithFriendChecker(socials),
		user.WithPrivateInstance(cfg.Private),
	)
	admins := admin.New(adminStore, sessions, auditLogger,
		admin.WithLogger(log),
		admin.WithMetrics(mx),
		admin.WithCredentialParams(creds),
		admin.WithPageSize(cfg.PageSize),
	)
	boards := board.New(board.NewInMemoryStore(),
		board.WithLogger(log),
		board.WithPageSize(cfg.PageSize),
		board.WithFriendChecker(socials),
	)

	resolver.Users = users
	resolver.Admins = admins
	presence.Target = users
	directory.Users = users

	if cfg.SeedAdminName != "" {
		var secret []byte
		if cfg.SeedAdminSecret != "" {
			var err error
			secret, err = hex.DecodeString(cfg.SeedAdminSecret)
			if err != nil {
				return fmt.Errorf("decode seed admin secret: %w", err)
			}
		}
		result, err := admin.EnsureSeedAdmin(context.Background(), adminStore, creds, cfg.SeedAdminName, secret)
		if err != nil {
			return fmt.Errorf("seed admin: %w", err)
		}
		if result.Created {
			// Printed once, on the run that created the account.
			log.Info("seed admin created",
				"admin_id", result.ID.String(),
				"secret", hex.EncodeToString(result.Secret),
			)
		} else {
			log.Info("seed admin present", "admin_id", result.ID.String())
		}
	}

	router := httptransport.NewRouter(&httptransport.Handlers{
		Users:    users,
		Admins:   admins,
		Social:   socials,
		Keys:     keys,
		Boards:   boards,
		Sessions: sessions,
		About: httptransport.About{
			Version:         version,
			ServerName:      cfg.ServerName,
			Private:         cfg.Private,
			UserSessionTTL:  cfg.UserSessionTTL,
			AdminSessionTTL: cfg.AdminSessionTTL,
		},
		Logger:  log,
		Metrics: mx,
	})
	srv := httpserver.New(cfg.Addr, router)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		log.Info("server listening", "addr", cfg.Addr, "server_name", cfg.ServerName)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return group.Wait()
}
