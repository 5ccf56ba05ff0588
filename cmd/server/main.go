package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/tyemirov/behindy/internal/analytics"
	"github.com/tyemirov/behindy/internal/analyticspg"
	"github.com/tyemirov/behindy/internal/authkit"
	"github.com/tyemirov/behindy/internal/blog"
	"github.com/tyemirov/behindy/internal/storage"
	"github.com/tyemirov/behindy/internal/store"
	"github.com/tyemirov/behindy/internal/web"
)

var serveHTTP = func(server *http.Server) error {
	return server.ListenAndServe()
}

var buildIDTokenValidator = func(ctx context.Context) (authkit.IDTokenValidator, error) {
	return authkit.NewGoogleIDTokenValidator(ctx)
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "behindy",
		Short:   "Blog and portfolio backend with cookie sessions, Google sign-in, and object uploads",
		PreRunE: prepareServerConfig,
		RunE:    runServer,
	}

	rootCmd.Flags().String("listen_addr", ":8080", "HTTP listen address")
	rootCmd.Flags().String("database_url", "", "Database URL (postgres:// or sqlite://)")
	rootCmd.Flags().String("environment", authkit.EnvironmentDevelopment, "Deployment environment (development or production)")
	rootCmd.Flags().String("issuer", "behindy", "JWT issuer claim")
	rootCmd.Flags().String("access_token_secret", "", "HS256 signing secret for access tokens")
	rootCmd.Flags().String("refresh_token_secret", "", "HS256 signing secret for refresh tokens")
	rootCmd.Flags().String("cookie_secret", "", "HMAC secret for the session cookie envelope")
	rootCmd.Flags().Duration("access_token_ttl", 15*time.Minute, "Access token TTL")
	rootCmd.Flags().Duration("refresh_token_ttl", 7*24*time.Hour, "Refresh token TTL")
	rootCmd.Flags().Duration("nonce_ttl", 5*time.Minute, "Nonce lifetime for Google one-tap exchanges")
	rootCmd.Flags().String("google_client_id", "", "Google OAuth client ID")
	rootCmd.Flags().String("google_client_secret", "", "Google OAuth client secret (redirect flow only)")
	rootCmd.Flags().String("base_url", "http://localhost:8080", "Public base URL used in OAuth redirects")
	rootCmd.Flags().String("storage_backend", storage.BackendLocal, "Upload storage backend (local, s3, r2)")
	rootCmd.Flags().String("storage_base_path", "", "Local storage directory")
	rootCmd.Flags().String("storage_base_url", "", "Public URL prefix for stored objects")
	rootCmd.Flags().String("storage_bucket", "", "Bucket name for s3/r2 backends")
	rootCmd.Flags().String("storage_region", "", "Region for the s3 backend")
	rootCmd.Flags().String("storage_endpoint", "", "Endpoint override for r2 or S3-compatible stores")
	rootCmd.Flags().String("storage_access_key", "", "Access key for s3/r2 backends")
	rootCmd.Flags().String("storage_secret_key", "", "Secret key for s3/r2 backends")
	rootCmd.Flags().Bool("enable_cors", false, "Enable CORS for cross-origin clients")
	rootCmd.Flags().StringSlice("cors_allowed_origins", []string{}, "Allowed origins when CORS is enabled")

	for _, flagName := range []string{
		"listen_addr", "database_url", "environment", "issuer",
		"access_token_secret", "refresh_token_secret", "cookie_secret",
		"access_token_ttl", "refresh_token_ttl", "nonce_ttl",
		"google_client_id", "google_client_secret", "base_url",
		"storage_backend", "storage_base_path", "storage_base_url",
		"storage_bucket", "storage_region", "storage_endpoint",
		"storage_access_key", "storage_secret_key",
		"enable_cors", "cors_allowed_origins",
	} {
		_ = viper.BindPFlag(flagName, rootCmd.Flags().Lookup(flagName))
	}

	viper.SetEnvPrefix("APP")
	viper.AutomaticEnv()

	return rootCmd
}

const (
	sessionCookieName = "behindy_session"

	configCodeMissingAccessSecret     = "config.missing_access_token_secret"
	configCodeMissingRefreshSecret    = "config.missing_refresh_token_secret"
	configCodeMissingCookieSecret     = "config.missing_cookie_secret"
	configCodeMissingGoogleClientID   = "config.missing_google_client_id"
	configCodeMissingDatabaseURL      = "config.missing_database_url"
	configCodeInvalidEnvironment      = "config.invalid_environment"
	configCodeInvalidAccessTTL        = "config.invalid_access_token_ttl"
	configCodeInvalidRefreshTTL       = "config.invalid_refresh_token_ttl"
	configCodeUninitializedServerConf = "config.uninitialized_server_config"
	configCodeGoogleValidatorInit     = "config.google_validator_init"
	configCodeStorageInit             = "config.storage_init"
	configCodeViewStatsInit           = "config.view_stats_init"
)

type contextKey string

const serverConfigContextKey contextKey = "serverConfig"

func prepareServerConfig(command *cobra.Command, arguments []string) error {
	serverConfig, loadErr := LoadServerConfig()
	if loadErr != nil {
		return loadErr
	}
	existingContext := command.Context()
	if existingContext == nil {
		existingContext = context.Background()
	}
	command.SetContext(context.WithValue(existingContext, serverConfigContextKey, serverConfig))
	return nil
}

func configError(code, message string) error {
	return fmt.Errorf("%s: %s", code, message)
}

// LoadServerConfig validates the token, cookie, and Google settings from viper.
func LoadServerConfig() (authkit.ServerConfig, error) {
	accessSecret := viper.GetString("access_token_secret")
	if accessSecret == "" {
		return authkit.ServerConfig{}, configError(configCodeMissingAccessSecret, "access_token_secret must be provided")
	}

	refreshSecret := viper.GetString("refresh_token_secret")
	if refreshSecret == "" {
		return authkit.ServerConfig{}, configError(configCodeMissingRefreshSecret, "refresh_token_secret must be provided")
	}

	cookieSecret := viper.GetString("cookie_secret")
	if cookieSecret == "" {
		return authkit.ServerConfig{}, configError(configCodeMissingCookieSecret, "cookie_secret must be provided")
	}

	googleClientID := viper.GetString("google_client_id")
	if googleClientID == "" {
		return authkit.ServerConfig{}, configError(configCodeMissingGoogleClientID, "google_client_id must be provided")
	}

	environment := viper.GetString("environment")
	if environment == "" {
		environment = authkit.EnvironmentDevelopment
	}
	if environment != authkit.EnvironmentDevelopment && environment != authkit.EnvironmentProduction {
		return authkit.ServerConfig{}, configError(configCodeInvalidEnvironment, "environment must be development or production")
	}

	accessTTL := viper.GetDuration("access_token_ttl")
	if accessTTL <= 0 {
		return authkit.ServerConfig{}, configError(configCodeInvalidAccessTTL, "access_token_ttl must be greater than zero")
	}

	refreshTTL := viper.GetDuration("refresh_token_ttl")
	if refreshTTL <= 0 {
		return authkit.ServerConfig{}, configError(configCodeInvalidRefreshTTL, "refresh_token_ttl must be greater than zero")
	}

	issuer := viper.GetString("issuer")
	if issuer == "" {
		issuer = "behindy"
	}

	nonceTTL := 5 * time.Minute
	if configuredNonceTTL := viper.GetDuration("nonce_ttl"); configuredNonceTTL > 0 {
		nonceTTL = configuredNonceTTL
	}

	return authkit.ServerConfig{
		AccessTokenSecret:  []byte(accessSecret),
		RefreshTokenSecret: []byte(refreshSecret),
		CookieSecret:       []byte(cookieSecret),
		Issuer:             issuer,
		SessionCookieName:  sessionCookieName,
		AccessTokenTTL:     accessTTL,
		RefreshTokenTTL:    refreshTTL,
		NonceTTL:           nonceTTL,
		Environment:        environment,
		GoogleClientID:     googleClientID,
		GoogleClientSecret: viper.GetString("google_client_secret"),
		BaseURL:            viper.GetString("base_url"),
	}, nil
}

func runServer(command *cobra.Command, arguments []string) error {
	logger, loggerErr := zap.NewProduction()
	if loggerErr != nil {
		return loggerErr
	}
	defer func() { _ = logger.Sync() }()

	commandContext := command.Context()
	var contextValue any
	if commandContext != nil {
		contextValue = commandContext.Value(serverConfigContextKey)
	}
	serverConfig, ok := contextValue.(authkit.ServerConfig)
	if !ok {
		return configError(configCodeUninitializedServerConf, "server configuration not prepared; PreRunE must execute before RunE")
	}

	listenAddr := viper.GetString("listen_addr")
	databaseURL := viper.GetString("database_url")
	enableCORS := viper.GetBool("enable_cors")
	corsAllowedOrigins := viper.GetStringSlice("cors_allowed_origins")

	if databaseURL == "" {
		return configError(configCodeMissingDatabaseURL, "database_url must be provided")
	}

	gormDB, driverLabel, openErr := store.Open(databaseURL)
	if openErr != nil {
		return openErr
	}
	defer func() { _ = store.Close(gormDB) }()
	logger.Info("database ready", zap.String("driver", driverLabel))

	objectStorage, storageErr := storage.New(storage.Config{
		Backend:   viper.GetString("storage_backend"),
		BasePath:  viper.GetString("storage_base_path"),
		BaseURL:   viper.GetString("storage_base_url"),
		Bucket:    viper.GetString("storage_bucket"),
		Region:    viper.GetString("storage_region"),
		Endpoint:  viper.GetString("storage_endpoint"),
		AccessKey: viper.GetString("storage_access_key"),
		SecretKey: viper.GetString("storage_secret_key"),
	})
	if storageErr != nil {
		return fmt.Errorf("%s: %w", configCodeStorageInit, storageErr)
	}

	clock := authkit.NewSystemClock()
	metricsRecorder := authkit.NewCounterMetrics()
	tokens := authkit.NewTokenCodec(serverConfig, clock)
	sessions := authkit.NewSessionCodec(serverConfig)
	users := authkit.NewGormUserStore(gormDB)
	refreshTokens := authkit.NewGormRefreshTokenStore(gormDB)
	authService := authkit.NewService(serverConfig, tokens, sessions, users, refreshTokens, clock, logger, metricsRecorder)
	resolver := authkit.NewResolver(authService, logger)
	googleAuth := authkit.NewGoogleAuthenticator(authkit.NewGoogleExchanger(serverConfig), authService, logger)
	nonceStore := authkit.NewMemoryNonceStore(serverConfig.NonceTTL, clock)

	validator, validatorErr := buildIDTokenValidator(command.Context())
	if validatorErr != nil {
		return fmt.Errorf("%s: %w", configCodeGoogleValidatorInit, validatorErr)
	}

	blogService := blog.NewService(blog.NewStore(gormDB), clock, logger)
	if driverLabel == "postgres" {
		pool, poolErr := analyticspg.BuildPool(command.Context(), databaseURL)
		if poolErr != nil {
			return fmt.Errorf("%s: %w", configCodeViewStatsInit, poolErr)
		}
		defer pool.Close()
		if schemaErr := analyticspg.EnsureSchema(command.Context(), pool); schemaErr != nil {
			return fmt.Errorf("%s: %w", configCodeViewStatsInit, schemaErr)
		}
		blogService.UseDailyViewRecorder(analyticspg.NewPostgresViewStats(pool))
		logger.Info("postgres view rollup fast path enabled")
	}

	analyticsService := analytics.NewService(gormDB, clock, logger)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(zapLoggerMiddleware(logger))

	if enableCORS {
		corsMiddleware, corsErr := web.ConfigureCORS(logger, corsAllowedOrigins)
		if corsErr != nil {
			return corsErr
		}
		router.Use(corsMiddleware)
	}

	webServer := web.NewServer(web.ServerOptions{
		Configuration: serverConfig,
		Logger:        logger,
		DB:            gormDB,
		Auth:          authService,
		Resolver:      resolver,
		GoogleAuth:    googleAuth,
		Validator:     validator,
		Nonces:        nonceStore,
		Blog:          blogService,
		Analytics:     analyticsService,
		Objects:       objectStorage,
	})
	webServer.MountRoutes(router)

	server := &http.Server{
		Addr:              listenAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	shutdownCtx, shutdownCancel := context.WithCancel(context.Background())
	defer shutdownCancel()

	go func() {
		stopSignals := make(chan os.Signal, 1)
		signal.Notify(stopSignals, syscall.SIGINT, syscall.SIGTERM)
		<-stopSignals
		graceCtx, graceCancel := context.WithTimeout(shutdownCtx, 10*time.Second)
		defer graceCancel()
		if err := server.Shutdown(graceCtx); err != nil {
			logger.Error("server shutdown error", zap.Error(err))
		}
	}()

	logger.Info("listening", zap.String("addr", listenAddr))
	if err := serveHTTP(server); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("listen error: %w", err)
	}
	return nil
}

func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(contextGin *gin.Context) {
		startTime := time.Now()
		contextGin.Next()
		duration := time.Since(startTime)
		logger.Info("http",
			zap.String("method", contextGin.Request.Method),
			zap.String("path", contextGin.Request.URL.Path),
			zap.Int("status", contextGin.Writer.Status()),
			zap.String("ip", contextGin.ClientIP()),
			zap.Duration("elapsed", duration),
		)
	}
}
