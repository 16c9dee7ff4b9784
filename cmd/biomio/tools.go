package main

import (
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/basel-ax/biomio/internal/domain"
	"github.com/basel-ax/biomio/internal/imaging"
	"github.com/basel-ax/biomio/internal/service"
	"github.com/spf13/cobra"
)

var (
	summarize bool
	download  bool
	limit     int
)

var describeCmd = &cobra.Command{
	Use:   "describe <image>",
	Short: "Describe a landscape photo with the vision model",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		describer, _, _, err := newDescriptionService(cfg)
		if err != nil {
			return err
		}
		desc, err := describer.Describe(ctx, args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), desc)
		if !service.IsLandscape(desc) {
			return errors.New("image is not a landscape")
		}

		if summarize {
			summary, err := describer.Summarize(ctx, desc)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Summary:")
			fmt.Fprintln(cmd.OutOrStdout(), summary)
		}
		return nil
	},
}

var generateCmd = &cobra.Command{
	Use:   "generate <prompt>",
	Short: "Generate an image from a prompt, retrying on rate limits",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		url, err := newImageService(cfg).Generate(ctx, strings.Join(args, " "))
		if err != nil {
			var cpv *domain.ContentPolicyViolationError
			if errors.As(err, &cpv) {
				return fmt.Errorf("prompt rejected: %s", cpv.Message)
			}
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), url)

		if download {
			path, err := imaging.NewCodec(cfg.TempDir, cfg.HTTPTimeout).URLToTempFile(ctx, url, service.TempFilePrefix)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Generated image saved at: %s\n", path)
		}
		return nil
	},
}

var collageCmd = &cobra.Command{
	Use:   "collage <original> <generated>",
	Short: "Compose a 2x2 collage from an original and a generated image",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := service.MakeCollage(cfg.CollagesDir, args[0], args[1])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Collage saved at: %s\n", path)
		return nil
	},
}

var rejectionsCmd = &cobra.Command{
	Use:   "rejections",
	Short: "List prompts rejected for content policy reasons",
	RunE: func(cmd *cobra.Command, args []string) error {
		return listJournal(cmd, domain.StatusContentPolicyViolation)
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List the most recent generation outcomes",
	RunE: func(cmd *cobra.Command, args []string) error {
		return listJournal(cmd, "")
	},
}

func init() {
	describeCmd.Flags().BoolVar(&summarize, "summarize", false, "Also summarize the description")
	generateCmd.Flags().BoolVar(&download, "download", false, "Download the generated image to the temp dir")
	rejectionsCmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of records")
	historyCmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of records")

	rootCmd.AddCommand(describeCmd, generateCmd, collageCmd, rejectionsCmd, historyCmd)
}

// listJournal prints journal records, filtered by status unless it is empty
func listJournal(cmd *cobra.Command, status domain.GenerationStatus) error {
	if !cfg.DB.Enabled() {
		return errors.New("generation journal is disabled, set DB_HOST to enable it")
	}

	ctx, cancel := signalContext()
	defer cancel()

	db, repo, err := openJournal(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	var records []domain.GenerationRecord
	if status == "" {
		records, err = repo.ListRecent(ctx, limit)
	} else {
		records, err = repo.ListByStatus(ctx, status, limit)
	}
	if err != nil {
		return fmt.Errorf("failed to list generations: %w", err)
	}

	log.Printf("Found %d record(s)", len(records))
	for _, rec := range records {
		fmt.Fprintf(cmd.OutOrStdout(), "%d\tslot %d\t%s\t%s\t%s\n", rec.ID, rec.PromptIndex, rec.Status, rec.Prompt, rec.Message)
	}
	return nil
}
