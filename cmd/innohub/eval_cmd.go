package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Frallans76Organisation/innovation-hub/pkg/catalog"
	"github.com/Frallans76Organisation/innovation-hub/pkg/mapper"
	"github.com/Frallans76Organisation/innovation-hub/pkg/mapper/eval"
)

func newEvalCmd(a *app) *cobra.Command {
	var (
		golden   string
		output   string
		jsonOut  bool
		semantic bool
	)
	cmd := &cobra.Command{
		Use:   "eval --golden <fil>",
		Short: "Evaluate matching quality against a golden set",
		Long: `Maps every case of a golden dataset and scores the ranking with
Recall@3/@5, nDCG@10 and MRR@10, plus recommendation accuracy for
cases that declare an expected decision. By default only the keyword
tier runs, so results are reproducible; --semantic adds the configured
vector store as the first tier.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			ds, err := eval.LoadDataset(golden)
			if err != nil {
				return err
			}

			var cat *catalog.Catalog
			if path := ds.CatalogPath(); path != "" {
				cat = catalog.New()
				if _, err := catalog.NewIngestor(cat, nil).IngestFile(ctx, path); err != nil {
					return fmt.Errorf("load golden catalog: %w", err)
				}
			} else {
				cat = a.loadKeywordCatalog(ctx)
			}

			var sem mapper.SemanticSearcher
			if semantic {
				ret, err := a.openRetriever(ctx)
				if err != nil {
					return err
				}
				defer ret.Close()
				sem = ret
			}
			m := mapper.New(sem, cat, a.cfg.RAG.TopK)

			cfg := eval.RunConfig{CatalogSize: cat.Len()}
			if !jsonOut {
				cfg.LogFunc = func(msg string) { fmt.Println(msg) }
			}
			report, err := eval.Run(ctx, ds, m, cfg)
			if err != nil {
				return err
			}

			if output != "" {
				f, err := os.Create(output)
				if err != nil {
					return err
				}
				defer f.Close()
				if err := report.WriteJSON(f); err != nil {
					return err
				}
				fmt.Printf("Report written to %s\n", output)
			}
			if jsonOut {
				return report.WriteJSON(os.Stdout)
			}

			fmt.Printf("Eval run: %s\n", report.RunID)
			fmt.Printf("Dataset: %s (%d cases, %d judged, %d checked)\n",
				report.Dataset, len(report.Cases), report.Judged, report.Checked)
			fmt.Printf("Recall@3: %.4f | Recall@5: %.4f | nDCG@10: %.4f | MRR@10: %.4f\n",
				report.Metrics.Recall3, report.Metrics.Recall5, report.Metrics.NDCG10, report.Metrics.MRR10)
			if report.Checked > 0 {
				fmt.Printf("Recommendation accuracy: %.4f\n", report.Accuracy)
			}
			fmt.Printf("Completed in %s\n", report.Duration)
			return nil
		},
	}
	cmd.Flags().StringVar(&golden, "golden", "", "path to the golden dataset YAML")
	cmd.Flags().StringVar(&output, "output", "", "write the full JSON report to this file")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "print the full report as JSON")
	cmd.Flags().BoolVar(&semantic, "semantic", false, "include the semantic tier using the configured vector store")
	_ = cmd.MarkFlagRequired("golden")
	return cmd
}
