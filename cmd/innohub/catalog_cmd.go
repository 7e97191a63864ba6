package main

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Frallans76Organisation/innovation-hub/pkg/catalog"
	"github.com/Frallans76Organisation/innovation-hub/pkg/document"
	"github.com/Frallans76Organisation/innovation-hub/pkg/logger"
	"github.com/Frallans76Organisation/innovation-hub/pkg/rag"
)

func newIngestCmd(a *app) *cobra.Command {
	var reset bool
	cmd := &cobra.Command{
		Use:   "ingest [katalogfil]",
		Short: "Rebuild both indices from a catalog file",
		Long: `Parses service tables from an HTML, CSV or text catalog and rebuilds
the keyword index and the vector store. Previously ingested versions of
the same services are replaced. Without an argument the configured
catalog file is used.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			path := a.cfg.CatalogPath
			if len(args) == 1 {
				path = args[0]
			}
			if path == "" {
				return errors.New("no catalog file given (set CATALOG_PATH or pass a path)")
			}

			if reset {
				if err := rag.ResetSnapshot(a.cfg.DataDir); err != nil {
					return fmt.Errorf("reset snapshot: %w", err)
				}
				logger.Info("innohub: vector snapshot reset")
			}

			ret, err := a.openRetriever(ctx)
			if err != nil {
				return err
			}
			defer ret.Close()

			// Plain text and markdown carry no service table, so they
			// land in the vector store only.
			switch strings.ToLower(filepath.Ext(path)) {
			case ".txt", ".md":
				stored, err := document.NewProcessor(ret).ProcessFile(ctx, path)
				if err != nil {
					return err
				}
				fmt.Printf("Stored %d chunks from %s\n", stored, path)
				return nil
			}

			cat := catalog.New()
			ing := catalog.NewIngestor(cat, ret)
			n, err := ing.Reingest(ctx, path)
			if err != nil {
				return err
			}

			chunks, _ := ret.Count(ctx)
			bold := color.New(color.Bold).SprintFunc()
			fmt.Printf("Ingested %s services from %s\n", bold(fmt.Sprint(n)), path)
			fmt.Printf("Vector store %s holds %d chunks\n", ret.StoreName(), chunks)
			if !ret.Ready() {
				fmt.Println("Semantic search is unavailable, matching runs keyword-only")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&reset, "reset", false, "discard the on-disk vector snapshot before ingesting")
	return cmd
}

func newDeleteCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <tjänstenamn>",
		Short: "Remove a service from both indices",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			ret, err := a.openRetriever(ctx)
			if err != nil {
				return err
			}
			defer ret.Close()

			cat := a.loadKeywordCatalog(ctx)
			ing := catalog.NewIngestor(cat, ret)
			records, chunks, err := ing.DeleteService(ctx, args[0])
			if err != nil {
				return err
			}
			if records == 0 && chunks == 0 {
				fmt.Printf("Nothing stored under %q\n", args[0])
				return nil
			}
			fmt.Printf("Removed %d catalog records and %d stored chunks for %q\n", records, chunks, args[0])
			return nil
		},
	}
	return cmd
}

type statsOutput struct {
	Catalog  catalog.Stats      `json:"catalog"`
	Semantic rag.RetrieverStats `json:"semantic"`
}

func newStatsCmd(a *app) *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show catalog and vector store statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			ret, err := a.openRetriever(ctx)
			if err != nil {
				return err
			}
			defer ret.Close()

			out := statsOutput{
				Catalog:  a.loadKeywordCatalog(ctx).Stats(),
				Semantic: ret.Stats(ctx),
			}
			if jsonOut {
				return printJSON(out)
			}

			bold := color.New(color.Bold).SprintFunc()
			fmt.Printf("%s %d services, %d indexed tokens, %.1f keywords/service\n",
				bold("Catalog:"), out.Catalog.Records, out.Catalog.IndexedTokens, out.Catalog.AvgKeywords)
			names := make([]string, 0, len(out.Catalog.Categories))
			for name := range out.Catalog.Categories {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				fmt.Printf("  %s: %d\n", name, out.Catalog.Categories[name])
			}
			fmt.Printf("%s store=%s chunks=%d semantic=%v persistent=%v\n",
				bold("Vectors:"), out.Semantic.Store, out.Semantic.Documents, out.Semantic.SemanticOK, out.Semantic.Persistent)
			if out.Semantic.Provider != "" {
				fmt.Printf("  embeddings: %s/%s\n", out.Semantic.Provider, out.Semantic.Model)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "print statistics as JSON")
	return cmd
}

func newWatchCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Reingest the catalog whenever its file changes",
		Long: `Watches the configured catalog file and rebuilds both indices after
edits, with an optional cron-scheduled full rebuild. Runs until
interrupted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if a.cfg.CatalogPath == "" {
				return errors.New("watch needs a catalog file (set CATALOG_PATH or --catalog)")
			}

			ret, err := a.openRetriever(ctx)
			if err != nil {
				return err
			}
			defer ret.Close()

			cat := catalog.New()
			ing := catalog.NewIngestor(cat, ret)
			if _, err := ing.Reingest(ctx, a.cfg.CatalogPath); err != nil {
				logger.Warn(fmt.Sprintf("innohub: initial ingest failed: %v", err))
			}

			opts := []catalog.WatcherOption{catalog.WithFlusher(ret)}
			if a.cfg.Watch.Debounce > 0 {
				opts = append(opts, catalog.WithDebounce(a.cfg.Watch.Debounce))
			}
			if a.cfg.Watch.RebuildCron != "" {
				opts = append(opts, catalog.WithRebuildCron(a.cfg.Watch.RebuildCron))
			}
			w, err := catalog.NewWatcher(ing, a.cfg.CatalogPath, opts...)
			if err != nil {
				return err
			}
			w.Start(ctx)
			fmt.Printf("Watching %s (Ctrl+C to stop)\n", a.cfg.CatalogPath)
			<-ctx.Done()
			w.Stop()
			return nil
		},
	}
	return cmd
}
