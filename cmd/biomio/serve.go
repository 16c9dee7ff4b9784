package main

import (
	"context"
	"log"
	"sync"

	"github.com/basel-ax/biomio/internal/domain"
	"github.com/basel-ax/biomio/internal/imaging"
	"github.com/basel-ax/biomio/internal/repository"
	"github.com/basel-ax/biomio/internal/service"
	"github.com/basel-ax/biomio/internal/web"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the web application",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		describer, loader, manifest, err := newDescriptionService(cfg)
		if err != nil {
			return err
		}
		log.Printf("Using %d generation prompt(s): %v", len(manifest.Generate), manifest.Generate)

		// The journal stays disabled unless a database is configured
		var journal domain.Journal
		if cfg.DB.Enabled() {
			db, repo, err := openJournal(ctx, cfg)
			if err != nil {
				return err
			}
			defer db.Close()
			journal = repo
		}

		samples, err := repository.NewSampleRepository(cfg.SamplesDir)
		if err != nil {
			return err
		}
		log.Printf("Loaded %d sample(s) from %s", len(samples.List()), cfg.SamplesDir)

		log.Println("Initializing image generation service...")
		flow := service.NewFlow(
			describer,
			newImageService(cfg),
			imaging.NewCodec(cfg.TempDir, cfg.HTTPTimeout),
			loader,
			journal,
			service.FlowConfig{
				GeneratePrompts:  manifest.Generate,
				PlaceholderImage: cfg.ContentPolicyViolationFile,
				Pacing:           cfg.EmissionPacing,
			},
		)
		log.Println("Image generation service initialized")

		server := web.NewServer(flow, samples, web.Config{
			TempDir:     cfg.TempDir,
			CollagesDir: cfg.CollagesDir,
		})
		go startCronJobs(ctx, samples, server)

		err = server.Run(ctx, cfg.ServerAddr)
		log.Println("Shutting down gracefully...")
		return err
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

// startCronJobs rescans the samples directory so new samples appear without a
// restart, and drops file refs the browser no longer uses
func startCronJobs(ctx context.Context, samples *repository.SampleRepository, server *web.Server) {
	c := cron.New(cron.WithSeconds())

	var cronMutex sync.Mutex
	if cfg.SamplesRefreshSpec != "" {
		_, err := c.AddFunc(cfg.SamplesRefreshSpec, func() {
			cronMutex.Lock()
			defer cronMutex.Unlock()
			log.Println("[CRON] Refreshing samples...")
			if err := samples.Refresh(); err != nil {
				log.Printf("[CRON] Error refreshing samples: %v", err)
				return
			}
			log.Printf("[CRON] Finished refreshing samples, %d available.", len(samples.List()))
		})
		if err != nil {
			log.Printf("Error scheduling sample refresh: %v", err)
			return
		}
	}

	if cfg.FileRefSweepSpec != "" && cfg.FileRefTTL > 0 {
		_, err := c.AddFunc(cfg.FileRefSweepSpec, func() {
			cronMutex.Lock()
			defer cronMutex.Unlock()
			dropped := server.SweepFiles(cfg.FileRefTTL)
			log.Printf("[CRON] Dropped %d file ref(s) unused for %s.", dropped, cfg.FileRefTTL)
		})
		if err != nil {
			log.Printf("Error scheduling file ref sweep: %v", err)
			return
		}
	}

	c.Start()
	log.Println("Cron scheduler started successfully")

	<-ctx.Done()
	c.Stop()
	log.Println("Cron scheduler stopped")
}
