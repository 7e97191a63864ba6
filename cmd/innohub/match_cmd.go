package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Frallans76Organisation/innovation-hub/pkg/analyze"
	"github.com/Frallans76Organisation/innovation-hub/pkg/logger"
	"github.com/Frallans76Organisation/innovation-hub/pkg/mapper"
)

func ideaArgs(args []string) (title, description string) {
	if len(args) > 1 {
		return args[0], args[1]
	}
	return args[0], ""
}

func newMatchCmd(a *app) *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "match <titel> [beskrivning]",
		Short: "Map an idea against the service catalog",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			ret, err := a.openRetriever(ctx)
			if err != nil {
				return err
			}
			defer ret.Close()

			cat := a.loadKeywordCatalog(ctx)
			m := mapper.New(ret, cat, a.cfg.RAG.TopK)

			title, desc := ideaArgs(args)
			res := m.Map(ctx, title, desc)
			if jsonOut {
				return printJSON(res)
			}
			printMatchResult(res)
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "print the full result as JSON")
	return cmd
}

func newDevelopCmd(a *app) *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "develop <titel> [beskrivning]",
		Short: "Categorize a development need against existing services",
		Long: `Keyword-only matching with development-need thresholds. No embeddings
are used, so the result is deterministic for a given catalog.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cat := a.loadKeywordCatalog(cmd.Context())
			m := mapper.New(nil, cat, a.cfg.RAG.TopK)

			title, desc := ideaArgs(args)
			res := m.CategorizeDevelopmentNeed(title, desc)
			if jsonOut {
				return printJSON(res)
			}
			printMatchResult(res)
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "print the full result as JSON")
	return cmd
}

func newAnalyzeCmd(a *app) *cobra.Command {
	var ideaType, targetGroup string
	cmd := &cobra.Command{
		Use:   "analyze <titel> [beskrivning]",
		Short: "Run the full AI analysis for an idea",
		Long: `Classifies the idea (category, priority, tags, sentiment, status) and
maps it against the service catalog. The report is printed as JSON.
Without OPENROUTER_API_KEY the classifiers fall back to defaults and
only the service mapping carries signal.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			ret, err := a.openRetriever(ctx)
			if err != nil {
				return err
			}
			defer ret.Close()

			cat := a.loadKeywordCatalog(ctx)
			m := mapper.New(ret, cat, a.cfg.RAG.TopK)

			var chat analyze.ChatClient
			if client, err := analyze.NewClient(a.cfg.Analyze); err != nil {
				logger.Warn(fmt.Sprintf("innohub: %v", err))
			} else {
				chat = client
			}

			an := analyze.NewAnalyzer(chat, m, a.cfg.Analyze.Concurrency)
			title, desc := ideaArgs(args)
			report, err := an.Analyze(ctx, analyze.Idea{
				Title:       title,
				Description: desc,
				Type:        ideaType,
				TargetGroup: targetGroup,
			})
			if err != nil {
				return err
			}
			return printJSON(report)
		},
	}
	cmd.Flags().StringVar(&ideaType, "type", "", "idea type shown to the classifiers")
	cmd.Flags().StringVar(&targetGroup, "target-group", "", "target group shown to the classifiers")
	return cmd
}

var recommendationColors = map[mapper.Recommendation]*color.Color{
	mapper.RecommendExisting: color.New(color.FgGreen, color.Bold),
	mapper.RecommendDevelop:  color.New(color.FgYellow, color.Bold),
	mapper.RecommendNew:      color.New(color.FgCyan, color.Bold),
}

func printMatchResult(res mapper.MatchResult) {
	c, ok := recommendationColors[res.Recommendation]
	if !ok {
		c = color.New(color.Bold)
	}
	fmt.Printf("Rekommendation: %s\n", c.Sprint(string(res.Recommendation)))
	fmt.Printf("Tillförlitlighet: %d%% | Utvecklingsinsats: %s | Bästa träff: %.3f\n",
		int(res.Confidence*100), res.Impact, res.BestScore)
	fmt.Printf("Motivering: %s\n", res.Reasoning)
	if len(res.Candidates) > 0 {
		fmt.Println("Matchande tjänster:")
		for i, cand := range res.Candidates {
			fmt.Printf("%d. %s", i+1, cand.Name)
			if cand.Category != "" {
				fmt.Printf(" [%s]", cand.Category)
			}
			fmt.Printf(" score=%.3f\n", cand.Score)
			if cand.Description != "" {
				fmt.Printf("   %s\n", cand.Description)
			}
		}
	}
	if len(res.Notes) > 0 {
		fmt.Println("Noteringar:")
		for _, n := range res.Notes {
			fmt.Printf("- %s\n", n)
		}
	}
}
