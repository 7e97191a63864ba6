package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/Frallans76Organisation/innovation-hub/pkg/catalog"
	"github.com/Frallans76Organisation/innovation-hub/pkg/config"
	"github.com/Frallans76Organisation/innovation-hub/pkg/logger"
	"github.com/Frallans76Organisation/innovation-hub/pkg/rag"
)

// app carries the loaded configuration and the flag overrides shared by
// every subcommand.
type app struct {
	cfgFile     string
	logLevel    string
	dataDir     string
	catalogPath string

	cfg *config.Config
}

func newRootCmd() *cobra.Command {
	a := &app{}
	cmd := &cobra.Command{
		Use:   "innohub",
		Short: "Idea-to-service matching for the municipal service catalog",
		Long: `innohub maps improvement ideas from the innovation hub against the
existing service catalog. It keeps two indices: a keyword index over
service names and descriptions, and an optional semantic index of
embedded service documents. Matching tries the semantic tier first and
falls back to keywords, so results degrade instead of failing when
embeddings are unavailable.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return a.bootstrap()
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", "", "path to a YAML config file")
	flags.StringVar(&a.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	flags.StringVar(&a.dataDir, "data-dir", "", "directory for the vector snapshot")
	flags.StringVar(&a.catalogPath, "catalog", "", "path to the service catalog file")

	cmd.AddCommand(
		newIngestCmd(a),
		newMatchCmd(a),
		newDevelopCmd(a),
		newAnalyzeCmd(a),
		newDeleteCmd(a),
		newStatsCmd(a),
		newWatchCmd(a),
		newEvalCmd(a),
	)
	return cmd
}

// bootstrap loads configuration and applies flag overrides before any
// subcommand runs.
func (a *app) bootstrap() error {
	// .env values must land before config reads the environment.
	_ = godotenv.Load()

	var (
		cfg *config.Config
		err error
	)
	if a.cfgFile != "" {
		cfg, err = config.LoadFile(a.cfgFile)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.LogLevel = a.logLevel
	}
	if a.dataDir != "" {
		cfg.DataDir = a.dataDir
	}
	if a.catalogPath != "" {
		cfg.CatalogPath = a.catalogPath
	}
	logger.SetLevel(cfg.LogLevel)
	a.cfg = cfg
	return nil
}

// openRetriever builds the semantic pipeline. Store failures are hard
// errors: serving from a broken snapshot would silently diverge from
// the catalog.
func (a *app) openRetriever(ctx context.Context) (*rag.Retriever, error) {
	ret, err := rag.NewRetriever(ctx, a.cfg.RAG, a.cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("open vector store: %w", err)
	}
	return ret, nil
}

// loadKeywordCatalog fills a fresh keyword index from the configured
// catalog file without touching the vector store. Read commands call
// this on every run; a missing file degrades to an empty catalog.
func (a *app) loadKeywordCatalog(ctx context.Context) *catalog.Catalog {
	cat := catalog.New()
	if a.cfg.CatalogPath == "" {
		logger.Warn("innohub: no catalog file configured, keyword matching starts empty")
		return cat
	}
	if _, err := catalog.NewIngestor(cat, nil).IngestFile(ctx, a.cfg.CatalogPath); err != nil {
		logger.Warn(fmt.Sprintf("innohub: could not load catalog %s: %v", a.cfg.CatalogPath, err))
	}
	return cat
}

func printJSON(v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(b))
	return nil
}
