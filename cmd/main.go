package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/imyashkale/authbroker/internal/cleanup"
	"github.com/imyashkale/authbroker/internal/config"
	"github.com/imyashkale/authbroker/internal/database"
	"github.com/imyashkale/authbroker/internal/handlers"
	"github.com/imyashkale/authbroker/internal/logger"
	"github.com/imyashkale/authbroker/internal/repository"
	"github.com/imyashkale/authbroker/internal/router"
	"github.com/imyashkale/authbroker/internal/services"
)

func main() {

	ctx := context.Background()

	// Load application configuration
	cfg := config.New()
	logger.Init(cfg.LogLevel)
	log.Println("Configuration loaded successfully")

	// Create DynamoDB client
	tables := database.NewTables(cfg)
	dbClient, err := database.NewClient(ctx, cfg.AWSRegion, tables)
	if err != nil {
		log.Fatalf("Failed to initialize DynamoDB client: %v", err)
	}
	log.Println("DynamoDB client initialized successfully")

	// Initialize database operations
	registryDB := database.NewRegistryDB(dbClient)
	clientDB := database.NewClientDB(dbClient)
	journeyDB := database.NewJourneyDB(dbClient)

	// Initialize repositories
	registryRepo := repository.NewRegistryRepository(registryDB)
	clientRepo := repository.NewClientRepository(clientDB)
	journeyRepo := repository.NewJourneyRepository(journeyDB)
	log.Println("Repositories initialized with DynamoDB backend")

	// Initialize token cipher for connection secrets and downstream tokens
	cipher, err := services.NewTokenCipher(cfg.TokenEncryptionKey)
	if err != nil {
		log.Fatalf("Failed to initialize token cipher: %v", err)
	}

	// Initialize token service with the configured or generated signing key
	tokenService, err := services.NewTokenService(cfg.IssuerBaseURL, cfg.SigningKeyPEM, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	if err != nil {
		log.Fatalf("Failed to initialize token service: %v", err)
	}
	log.Println("Token service initialized")

	// Initialize services
	providerFactory := services.NewProviderFactory(cipher, cfg.CallbackURL)
	registryService := services.NewRegistryService(registryRepo, cipher)
	clientService := services.NewClientService(clientRepo)
	journeyService := services.NewJourneyService(
		journeyRepo,
		registryRepo,
		clientRepo,
		providerFactory,
		cipher,
		tokenService,
		cfg.AuthCodeTTL,
	)
	exchangeService := services.NewTokenExchangeService(
		journeyRepo,
		registryRepo,
		providerFactory,
		cipher,
		tokenService,
	)
	log.Println("Services initialized")

	// Apply the registry seed file when configured
	if cfg.RegistrySeedFile != "" {
		seedService := services.NewSeedService(registryService, registryRepo)
		if err := seedService.Apply(ctx, cfg.RegistrySeedFile); err != nil {
			log.Fatalf("Failed to apply registry seed: %v", err)
		}
	}

	// Start the journey cleanup sweeper
	sweeper := cleanup.NewSweeper(journeyRepo, cfg.JourneyTTL, cfg.JourneyRetention, cfg.CleanupInterval)
	sweeper.Start()

	// Initialize handlers
	healthHandler := handlers.NewHealthHandler()
	discoveryHandler := handlers.NewDiscoveryHandler(tokenService, registryService, cfg.IssuerBaseURL)
	clientHandler := handlers.NewClientHandler(clientService, registryService)
	authorizeHandler := handlers.NewAuthorizeHandler(journeyService, registryService)
	tokenHandler := handlers.NewTokenHandler(journeyService, exchangeService, tokenService, registryService)
	registryHandler := handlers.NewRegistryHandler(registryService)
	log.Println("Handlers initialized")

	// Setup router
	r := router.Setup(
		cfg.AdminAPIToken,
		healthHandler,
		discoveryHandler,
		clientHandler,
		authorizeHandler,
		tokenHandler,
		registryHandler,
	)

	// Setup graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan
		log.Println("Shutting down server gracefully...")

		sweeper.Stop()
		os.Exit(0)
	}()

	// Start server
	log.Printf("Starting server on :%s", cfg.Port)
	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}
