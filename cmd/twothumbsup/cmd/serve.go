package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/richie2909/TwoThumbsUp/cmd/twothumbsup/internal/auth"
	"github.com/richie2909/TwoThumbsUp/cmd/twothumbsup/internal/authz"
	"github.com/richie2909/TwoThumbsUp/cmd/twothumbsup/internal/db/bunx"
	"github.com/richie2909/TwoThumbsUp/cmd/twothumbsup/internal/migrations"
	"github.com/richie2909/TwoThumbsUp/cmd/twothumbsup/internal/repository"
	"github.com/richie2909/TwoThumbsUp/cmd/twothumbsup/internal/server"
	"github.com/richie2909/TwoThumbsUp/cmd/twothumbsup/internal/services/iam"
	"github.com/richie2909/TwoThumbsUp/cmd/twothumbsup/internal/services/images"
	"github.com/richie2909/TwoThumbsUp/cmd/twothumbsup/internal/services/likes"
	"github.com/richie2909/TwoThumbsUp/cmd/twothumbsup/internal/services/validation"
	"github.com/richie2909/TwoThumbsUp/cmd/twothumbsup/internal/telemetry"
)

// revokedPurgeInterval is how often expired denylist entries are dropped.
const revokedPurgeInterval = time.Hour

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the API server",
	Long:  `Starts the HTTP server with the auth, user, image and like endpoints.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		shutdownTracing, err := telemetry.Init(ctx, cfg.Observability)
		if err != nil {
			return fmt.Errorf("failed to initialize tracing: %w", err)
		}
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdownTracing(sctx); err != nil {
				log.WithError(err).Warn("tracing shutdown failed")
			}
		}()

		db, err := bunx.NewDB(cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer func() { _ = bunx.Close(db) }()
		log.WithField("type", bunx.DetectDatabaseType(cfg.DatabaseURL)).Info("connected to database")

		if cfg.AutoMigrate {
			group, err := migrations.Apply(ctx, db)
			if err != nil {
				return err
			}
			if !group.IsZero() {
				log.Infof("applied migration group %s", group)
			}
		}

		users := repository.NewBunUserRepository(db)
		revoked := repository.NewBunRevokedTokenRepository(db)
		imageRepo := repository.NewBunImageRepository(db)
		likeRepo := repository.NewBunLikeRepository(db)

		metrics := telemetry.NewMetrics()

		tokens, err := auth.NewTokenIssuer(cfg.Session.Secret, cfg.Session.TTL, cfg.Session.Issuer)
		if err != nil {
			return fmt.Errorf("failed to create token issuer: %w", err)
		}

		iamService, err := iam.NewIAMService(
			iam.IAMServiceDependencies{Users: users, Revoked: revoked, Tokens: tokens},
			iam.IAMServiceConfig{BcryptCost: cfg.Auth.BcryptCost},
		)
		if err != nil {
			return fmt.Errorf("create IAM service: %w", err)
		}

		if created := iamService.EnsureAdmins(ctx, cfg.Bootstrap.Admins); created > 0 {
			log.Infof("seeded %d bootstrap admin account(s)", created)
		}

		gate, err := authz.NewGate(authz.Options{DevBypass: cfg.Auth.DevBypass, Production: cfg.IsProduction()})
		if err != nil {
			return fmt.Errorf("configure authorization gate: %w", err)
		}
		if gate.BypassActive() {
			log.Warn("DEV BYPASS ACTIVE: every request is treated as an admin")
		}

		resolverDeps := iam.ResolverDependencies{
			SessionCookie: iam.NewSessionCookieAuthenticator(tokens, users, revoked),
			LocalBearer:   iam.NewLocalBearerAuthenticator(tokens, users, revoked),
			Metrics:       metrics,
		}

		var relyingParty *auth.RelyingParty
		if cfg.ExternalIdP != nil {
			verifier, err := auth.NewExternalVerifier(cfg.ExternalIdP, auth.WithFetchObserver(metrics.ObserveJWKSFetch))
			if err != nil {
				return fmt.Errorf("configure external token verifier: %w", err)
			}
			resolverDeps.External = iam.NewExternalAuthenticator(verifier, users)
			log.WithField("issuer", cfg.ExternalIdP.Issuer).Info("external identity provider configured")

			if cfg.ExternalIdP.SSOEnabled() {
				relyingParty, err = auth.NewRelyingParty(ctx, cfg.ExternalIdP, cfg.IsProduction())
				if err != nil {
					return fmt.Errorf("failed to create relying party: %w", err)
				}
				log.Info("SSO login enabled")
			}
		}

		validator, err := validation.NewSchemaValidator(16)
		if err != nil {
			return fmt.Errorf("create schema validator: %w", err)
		}

		go purgeRevokedTokens(ctx, iamService)

		externalEnabled := cfg.ExternalIdP != nil
		healthHandler := func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			_ = json.NewEncoder(w).Encode(map[string]any{"status": "ok", "external_idp": externalEnabled})
		}

		router := server.NewRouter(server.RouterOptions{
			Cfg:           cfg,
			IAM:           iamService,
			Resolver:      iam.NewResolver(resolverDeps),
			Gate:          gate,
			Likes:         likes.NewService(likeRepo, metrics),
			Images:        images.NewService(imageRepo, likeRepo, validator),
			Anonymous:     auth.NewAnonymousAllocator(),
			RelyingParty:  relyingParty,
			Metrics:       metrics,
			HealthHandler: healthHandler,
		})

		srv := &http.Server{
			Addr:              cfg.ServerAddr,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		}

		serverErrors := make(chan error, 1)
		go func() {
			log.WithFields(log.Fields{"addr": cfg.ServerAddr, "url": cfg.ServerURL}).Info("starting server")
			serverErrors <- srv.ListenAndServe()
		}()

		select {
		case err := <-serverErrors:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return fmt.Errorf("server error: %w", err)
		case <-ctx.Done():
			log.Info("shutting down gracefully")
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			_ = srv.Close()
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		log.Info("server stopped")
		return nil
	},
}

func purgeRevokedTokens(ctx context.Context, iamService iam.Service) {
	ticker := time.NewTicker(revokedPurgeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			n, err := iamService.PurgeRevokedTokens(ctx)
			if err != nil {
				log.WithError(err).Error("failed to purge revoked tokens")
				continue
			}
			if n > 0 {
				log.Debugf("purged %d expired revoked token(s)", n)
			}
		case <-ctx.Done():
			return
		}
	}
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
