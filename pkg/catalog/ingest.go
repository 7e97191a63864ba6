package catalog

import (
	"context"
	"fmt"

	"github.com/Frallans76Organisation/innovation-hub/pkg/document"
	"github.com/Frallans76Organisation/innovation-hub/pkg/logger"
)

// SemanticSink receives one document per service for vector indexing.
// The ingestor works without one; the keyword index then carries
// matching alone.
type SemanticSink interface {
	AddDocument(ctx context.Context, source, text string, meta map[string]string) error
	DeleteSource(ctx context.Context, source string) (int, error)
}

// Ingestor converts catalog tables into service records and feeds both
// the keyword index and, when configured, the semantic index.
type Ingestor struct {
	catalog *Catalog
	sink    SemanticSink
}

func NewIngestor(cat *Catalog, sink SemanticSink) *Ingestor {
	return &Ingestor{catalog: cat, sink: sink}
}

// FormatServiceDocument renders the text indexed for one service. The
// whole record stays a single document so name and description remain
// associated at retrieval time.
func FormatServiceDocument(rec ServiceRecord) string {
	return fmt.Sprintf("Tjänst: %s\n\nBeskrivning: %s\n\nStartdatum: %s\n\n"+
		"Detta är en befintlig tjänst som kan användas eller utvecklas för att möta liknande behov.",
		rec.Name, rec.Description, rec.StartDate)
}

func documentMeta(rec ServiceRecord) map[string]string {
	return map[string]string{
		"service_name": rec.Name,
		"service_type": "municipal_service",
		"start_date":   rec.StartDate,
		"category":     rec.Category,
		"source":       "service_catalog",
	}
}

// recordFromRow maps one table row to a record. Rows without both a
// name and a description cell are not records.
func recordFromRow(cells []string) (ServiceRecord, bool) {
	if len(cells) < 2 || cells[0] == "" || cells[1] == "" {
		return ServiceRecord{}, false
	}
	start := ""
	if len(cells) > 2 {
		start = cells[2]
	}
	return NewServiceRecord(cells[0], cells[1], start), true
}

// IngestTable adds every valid row of the table and returns how many
// records were created. Bad rows are skipped, and a failing semantic
// sink downgrades that service to keyword-only matching instead of
// aborting the run.
func (ing *Ingestor) IngestTable(ctx context.Context, table document.Table) int {
	count := 0
	for _, cells := range table.Rows {
		rec, ok := recordFromRow(cells)
		if !ok {
			logger.Debug(fmt.Sprintf("catalog: skipping row with %d usable cells", len(cells)))
			continue
		}
		ing.catalog.Add(rec)
		ing.feedSink(ctx, rec)
		count++
	}
	return count
}

func (ing *Ingestor) feedSink(ctx context.Context, rec ServiceRecord) {
	if ing.sink == nil {
		return
	}
	if err := ing.sink.AddDocument(ctx, rec.Name, FormatServiceDocument(rec), documentMeta(rec)); err != nil {
		logger.Warn(fmt.Sprintf("catalog: semantic index rejected %q: %v", rec.Name, err))
	}
}

// IngestFile parses path and ingests every table found in it.
func (ing *Ingestor) IngestFile(ctx context.Context, path string) (int, error) {
	tables, err := document.LoadTables(path)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, table := range tables {
		count += ing.IngestTable(ctx, table)
	}
	logger.Info(fmt.Sprintf("catalog: ingested %d services from %s", count, path))
	return count, nil
}

// Reingest reloads path from scratch: the keyword index is swapped
// atomically, documents of the previous generation are cleared and each
// current service is re-added under its name.
func (ing *Ingestor) Reingest(ctx context.Context, path string) (int, error) {
	tables, err := document.LoadTables(path)
	if err != nil {
		return 0, err
	}

	var records []ServiceRecord
	for _, table := range tables {
		for _, cells := range table.Rows {
			if rec, ok := recordFromRow(cells); ok {
				records = append(records, rec)
			}
		}
	}
	previous := ing.catalog.Records()
	ing.catalog.Replace(records)

	if ing.sink != nil {
		stale := make(map[string]struct{})
		for _, rec := range previous {
			stale[rec.Name] = struct{}{}
		}
		for _, rec := range records {
			stale[rec.Name] = struct{}{}
		}
		for name := range stale {
			if _, err := ing.sink.DeleteSource(ctx, name); err != nil {
				logger.Warn(fmt.Sprintf("catalog: could not clear %q before reingest: %v", name, err))
			}
		}
		for _, rec := range records {
			ing.feedSink(ctx, rec)
		}
	}
	logger.Info(fmt.Sprintf("catalog: reingested %d services from %s", len(records), path))
	return len(records), nil
}

// DeleteService removes the named service from both indices. Both
// counts are zero when the name was never ingested.
func (ing *Ingestor) DeleteService(ctx context.Context, name string) (records, chunks int, err error) {
	records = ing.catalog.Delete(name)
	if ing.sink != nil {
		chunks, err = ing.sink.DeleteSource(ctx, name)
		if err != nil {
			return records, 0, fmt.Errorf("delete %q from semantic index: %w", name, err)
		}
	}
	return records, chunks, nil
}
