package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	log "github.com/sirupsen/logrus"
	"github.com/unrolled/secure"

	"github.com/richie2909/TwoThumbsUp/cmd/twothumbsup/internal/auth"
	"github.com/richie2909/TwoThumbsUp/cmd/twothumbsup/internal/authz"
	"github.com/richie2909/TwoThumbsUp/cmd/twothumbsup/internal/config"
	ttumiddleware "github.com/richie2909/TwoThumbsUp/cmd/twothumbsup/internal/middleware"
	"github.com/richie2909/TwoThumbsUp/cmd/twothumbsup/internal/services/iam"
	"github.com/richie2909/TwoThumbsUp/cmd/twothumbsup/internal/services/images"
	"github.com/richie2909/TwoThumbsUp/cmd/twothumbsup/internal/services/likes"
	"github.com/richie2909/TwoThumbsUp/cmd/twothumbsup/internal/telemetry"
)

// RouterOptions controls the construction of the HTTP router.
// Cfg, IAM, Resolver and Gate are required. Likes and Images mount their
// routes only when set; RelyingParty enables the SSO endpoints.
type RouterOptions struct {
	Cfg          *config.Config
	IAM          iam.Service
	Resolver     *iam.Resolver
	Gate         *authz.Gate
	Likes        *likes.Service
	Images       *images.Service
	Anonymous    *auth.AnonymousAllocator
	RelyingParty *auth.RelyingParty
	Metrics      *telemetry.Metrics

	CORSOptions   *cors.Options
	Middleware    []func(http.Handler) http.Handler
	HealthHandler http.HandlerFunc
}

// DefaultCORSOptions returns the browser CORS policy for the given origins.
// Credentials are allowed so the session and anonymous cookies travel.
func DefaultCORSOptions(origins []string) cors.Options {
	return cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "X-Requested-With"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}
}

func defaultHealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// NewRouter assembles a chi.Router with shared middleware, security headers,
// CORS policy, and the API handlers mounted.
func NewRouter(opts RouterOptions) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	production := opts.Cfg.IsProduction()
	secureOpts := secure.Options{
		FrameDeny:          true,
		ContentTypeNosniff: true,
		BrowserXssFilter:   true,
		ReferrerPolicy:     "strict-origin-when-cross-origin",
		SSLRedirect:        production,
		SSLProxyHeaders:    map[string]string{"X-Forwarded-Proto": "https"},
		IsDevelopment:      !production,
	}
	if production {
		secureOpts.STSSeconds = 31536000
		secureOpts.STSIncludeSubdomains = true
	}
	r.Use(secure.New(secureOpts).Handler)

	corsCfg := DefaultCORSOptions(opts.Cfg.CORS.AllowedOrigins)
	if opts.CORSOptions != nil {
		corsCfg = *opts.CORSOptions
	}
	r.Use(cors.Handler(corsCfg))
	r.Use(opts.Metrics.Middleware)

	for _, mw := range opts.Middleware {
		if mw != nil {
			r.Use(mw)
		}
	}

	cookies := auth.CookieSettings{Secure: production}
	resolve := func(group iam.Group) func(http.Handler) http.Handler {
		return ttumiddleware.Resolve(opts.Resolver, opts.Gate, group)
	}
	require := func(c authz.Capability) func(http.Handler) http.Handler {
		return ttumiddleware.Require(opts.Gate, c)
	}

	loginLimiter := httprate.Limit(opts.Cfg.Auth.LoginRateLimit, opts.Cfg.Auth.LoginRateWindow,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			writeError(w, http.StatusTooManyRequests, "Too many login attempts, try again later")
		}),
	)
	r.With(loginLimiter).Post("/login", HandleLogin(opts.IAM, cookies))
	r.Post("/logout", HandleLogout(opts.IAM, cookies))
	r.With(resolve(iam.GroupLocalSession)).Get("/auth/check", HandleAuthCheck())

	if opts.RelyingParty != nil {
		r.Method(http.MethodGet, "/auth/sso/login", HandleSSOLogin(opts.RelyingParty))
		r.Method(http.MethodGet, "/auth/sso/callback", HandleSSOCallback(opts.RelyingParty, opts.IAM, cookies, opts.Cfg.ExternalIdP.PostLoginRedirect))
	}

	r.Route("/users", func(r chi.Router) {
		r.Use(resolve(iam.GroupExternal), require(authz.CapabilityAuthenticatedUser))
		r.Post("/sync-me", HandleSyncMe(opts.IAM))
		r.Get("/me", HandleGetMe(opts.IAM))
	})

	if opts.Images != nil {
		r.Route("/images", func(r chi.Router) {
			r.With(resolve(iam.GroupLikeCapable)).Get("/", HandleListImages(opts.Images))
			r.Get("/{id}", HandleGetImage(opts.Images))
			r.Get("/{id}/data", HandleImageData(opts.Images))

			r.Group(func(r chi.Router) {
				r.Use(resolve(iam.GroupLocalSession), require(authz.CapabilityAdmin))
				r.Post("/", HandleCreateImage(opts.Images))
				r.Patch("/{id}", HandleUpdateImage(opts.Images))
				r.Delete("/{id}", HandleDeleteImage(opts.Images))
			})

			if opts.Likes != nil {
				r.Group(func(r chi.Router) {
					r.Use(resolve(iam.GroupLikeCapable))
					r.Post("/{id}/like", HandleToggleLike(opts.Likes, opts.Anonymous, cookies, opts.Cfg.Anonymous.CookieTTL))
					r.Get("/{id}/like-status", HandleLikeStatus(opts.Likes))
				})
			}
		})
	} else {
		log.Warn("image service not configured, skipping /images routes")
	}

	healthHandler := opts.HealthHandler
	if healthHandler == nil {
		healthHandler = defaultHealthHandler
	}
	r.Get("/health", healthHandler)
	r.Method(http.MethodGet, "/metrics", opts.Metrics.Handler())

	return r
}
