// innohub matches improvement ideas against the municipal service
// catalog: ingest catalog files, map ideas to existing services, and
// run the full AI analysis pipeline.
//
// Usage:
//
//	innohub ingest catalog.html
//	innohub match "Digital parkeringsapp" "Betala parkering via mobilen"
//	innohub analyze "Chatbot för medborgarfrågor" "Svarar dygnet runt" --type improvement
//	innohub eval --golden golden.yaml
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
