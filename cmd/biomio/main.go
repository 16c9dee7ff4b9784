package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/basel-ax/biomio/internal/config"
	"github.com/basel-ax/biomio/internal/infrastructure/openaicompat"
	"github.com/basel-ax/biomio/internal/prompts"
	"github.com/basel-ax/biomio/internal/repository"
	"github.com/basel-ax/biomio/internal/service"
	_ "github.com/lib/pq"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	verbose    bool
	configFile string
	envFile    string

	cfg *config.Config

	rootCmd = &cobra.Command{
		Use:           "biomio",
		Short:         "Bio Mio turns landscape photos into stylized images",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Configure logging
			if verbose {
				log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
				log.Println("Verbose logging enabled")
			} else {
				log.SetFlags(log.Ldate | log.Ltime)
			}
			if err := setupZap(verbose); err != nil {
				return err
			}

			log.Println("Loading configuration...")
			loaded, err := config.LoadFile(envFile, configFile)
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			cfg = loaded
			log.Println("Configuration loaded successfully")
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = zap.L().Sync()
		},
	}
)

func init() {
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Optional config file (yaml, json or toml)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Environment file loaded before the process environment")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("%v", err)
	}
}

// setupZap installs the global zap logger used by the HTTP layer
func setupZap(verbose bool) error {
	var (
		logger *zap.Logger
		err    error
	)
	if verbose {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	zap.ReplaceGlobals(logger)
	return nil
}

// signalContext returns a context cancelled on SIGINT or SIGTERM
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigChan:
			log.Printf("Received signal: %v, initiating shutdown...", sig)
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigChan)
	}()

	return ctx, cancel
}

func newChatClient(cfg *config.Config) *openaicompat.ChatClient {
	return openaicompat.NewChatClient(openaicompat.ChatConfig{
		APIKey:      cfg.Chat.APIKey,
		BaseURL:     cfg.Chat.BaseURL,
		VisionModel: cfg.Chat.VisionModel,
		TextModel:   cfg.Chat.TextModel,
		MaxTokens:   cfg.Chat.MaxTokens,
		Timeout:     cfg.HTTPTimeout,
	})
}

func newImageService(cfg *config.Config) *service.ImageGenerationService {
	client := openaicompat.NewImageClient(cfg.ImageGen.APIKey, cfg.ImageGen.BaseURL, cfg.ImageGen.Model, cfg.HTTPTimeout)
	return service.NewImageGenerationService(client, cfg.ImageGen)
}

// newDescriptionService builds the description service from the prompt manifest
// and returns the loader and manifest for the flow
func newDescriptionService(cfg *config.Config) (*service.DescriptionService, *prompts.Loader, prompts.Manifest, error) {
	loader := prompts.NewLoader(cfg.PromptsDir)
	manifest, err := loader.Manifest()
	if err != nil {
		return nil, nil, prompts.Manifest{}, err
	}
	return service.NewDescriptionService(newChatClient(cfg), loader, manifest.Describe, manifest.Summarize), loader, manifest, nil
}

// openJournal connects to the generation journal database and makes sure its
// schema exists
func openJournal(ctx context.Context, cfg *config.Config) (*sql.DB, repository.GenerationRepository, error) {
	log.Println("Initializing database connection...")
	db, err := sql.Open("postgres", cfg.GetDSN())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(cfg.DB.MaxOpenConns)
	db.SetMaxIdleConns(cfg.DB.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.DB.ConnMaxLifetime)

	var repo repository.GenerationRepository = repository.NewPostgresGenerationRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, nil, err
	}
	log.Println("Database connection established")
	return db, repo, nil
}
