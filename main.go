package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	apiKey               string
	settingsPath         string
	researcherPromptPath string
	editorPromptPath     string
	schemaPath           string
	templatePath         string
	debugMode            bool
	overwriteMode        bool
	htmlMode             bool
	serveAddr            string
	newsQuery            string
	newsLimit            int
)

var logger *slog.Logger

var rootCmd = &cobra.Command{
	Use:   "news-digest [sources-file]",
	Short: "Editorially reviewed news digests using AI",
	Long: `Synthesizes a set of news articles into a single digest. A researcher agent
drafts the digest and an editor agent reviews it, asking for revisions until it
approves the draft or the iteration limit is reached.`,
	Args: func(cmd *cobra.Command, args []string) error {
		if newsQuery != "" && len(args) > 0 {
			return fmt.Errorf("--query cannot be combined with a sources file")
		}
		return cobra.MaximumNArgs(1)(cmd, args)
	},
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// .env is optional
		_ = godotenv.Load()
		logger = newLogger(logOutput, debugMode)
		slog.SetDefault(logger)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		source := "sources.yaml"
		if len(args) > 0 {
			source = args[0]
		}

		processor, err := NewDigestProcessor(apiKey, buildOverrides(), logger)
		if err != nil {
			return fmt.Errorf("failed to create processor: %w", err)
		}
		processor.SetOverwrite(overwriteMode)
		if htmlMode {
			processor.settings.RenderHTML = true
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		var result ProcessingResult
		if newsQuery != "" {
			result = processor.ProcessQuery(ctx, newsQuery, newsLimit)
		} else {
			result = processor.ProcessSources(ctx, source)
		}
		switch result.Status {
		case StatusSuccess:
			logger.Info("✓ Generated", "file", result.Filename, "iterations", result.Result.Iterations, "forced", result.Result.Forced)
		case StatusSkipped:
			logger.Info("Skipped: digest already exists", "file", result.Filename)
		default:
			return fmt.Errorf("processing failed: %w", result.Error)
		}
		return nil
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the digest workflow over HTTP",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		processor, err := NewDigestProcessor(apiKey, buildOverrides(), logger)
		if err != nil {
			return fmt.Errorf("failed to create processor: %w", err)
		}
		srv, err := NewServer(processor.Workflow(), logger)
		if err != nil {
			return err
		}

		httpServer := &http.Server{
			Addr:              serveAddr,
			Handler:           srv.Routes(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		errCh := make(chan error, 1)
		go func() {
			logger.Info("Starting web server", "addr", serveAddr)
			errCh <- httpServer.ListenAndServe()
		}()

		select {
		case err := <-errCh:
			if !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		case <-ctx.Done():
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	},
}

var addCmd = &cobra.Command{
	Use:   "add <url> [sources-file]",
	Short: "Add an article URL to a sources file",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		sourcesPath := "sources.yaml"
		if len(args) > 1 {
			sourcesPath = args[1]
		}
		if err := addURLToSources(sourcesPath, args[0]); err != nil {
			return err
		}
		logger.Info("✓ Added", "url", args[0], "file", sourcesPath)
		return nil
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write default settings and an example sources file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := ensureConfigExists(defaultConfigDir); err != nil {
			return err
		}
		if err := writeDefaultSources("sources.yaml"); err != nil {
			return err
		}
		logger.Info("✓ Initialized", "config", defaultConfigDir, "sources", "sources.yaml")
		return nil
	},
}

// buildOverrides collects the file overrides given on the command line
func buildOverrides() *ConfigOverrides {
	overrides := &ConfigOverrides{}
	if settingsPath != "" {
		overrides.SettingsPath = &settingsPath
	}
	if researcherPromptPath != "" {
		overrides.ResearcherPromptPath = &researcherPromptPath
	}
	if editorPromptPath != "" {
		overrides.EditorPromptPath = &editorPromptPath
	}
	if schemaPath != "" {
		overrides.DigestSchemaPath = &schemaPath
	}
	if templatePath != "" {
		overrides.TemplatePath = &templatePath
	}
	return overrides
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&apiKey, "api-key", "", "API key (defaults to ANTHROPIC_API_KEY or OPENAI_API_KEY)")
	flags.StringVar(&settingsPath, "settings", "", "Path to settings file")
	flags.StringVar(&researcherPromptPath, "researcher-prompt", "", "Path to custom researcher prompt file")
	flags.StringVar(&editorPromptPath, "editor-prompt", "", "Path to custom editor prompt file")
	flags.StringVar(&schemaPath, "schema", "", "Path to custom digest output schema (must describe exactly title, summary and source_article_ids)")
	flags.StringVar(&templatePath, "template", "", "Path to custom digest template file")
	flags.BoolVar(&debugMode, "debug", false, "Enable debug logging")

	rootCmd.Flags().BoolVar(&overwriteMode, "overwrite", false, "Regenerate digests that already exist")
	rootCmd.Flags().BoolVar(&htmlMode, "html", false, "Also write an HTML rendering of the digest")
	rootCmd.Flags().StringVar(&newsQuery, "query", "", "Build the digest from a NewsAPI search instead of a sources file (needs NEWS_API_KEY)")
	rootCmd.Flags().IntVar(&newsLimit, "limit", defaultNewsLimit, "Number of search results to use with --query")

	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8080", "HTTP listen address")

	rootCmd.AddCommand(serveCmd, addCmd, initCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
