package document

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// TextSink receives extracted document text, typically the semantic
// index. It reports how many units it stored.
type TextSink interface {
	AddText(ctx context.Context, source, text string, meta map[string]string) (int, error)
}

// Processor loads plain-text documents and hands them to a sink. Tabular
// catalog files go through LoadTables and the catalog ingestor instead.
type Processor struct {
	sink TextSink
}

func NewProcessor(sink TextSink) *Processor {
	return &Processor{sink: sink}
}

// ProcessFile reads one document and stores its text under the file's
// base name. Unsupported extensions are an input error, not a crash.
func (p *Processor) ProcessFile(ctx context.Context, path string) (int, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".txt", ".md":
	default:
		return 0, fmt.Errorf("unsupported document type %q", ext)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read document: %w", err)
	}

	name := filepath.Base(path)
	meta := map[string]string{
		"filename":  name,
		"file_type": strings.TrimPrefix(ext, "."),
	}
	return p.sink.AddText(ctx, name, string(data), meta)
}
