package storage

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/educatorstribe/tribenews/internal/types"
)

// Export formats.
const (
	FormatJSON  = "json"
	FormatJSONL = "jsonl"
	FormatCSV   = "csv"
)

var csvHeaders = []string{"id", "title", "canonical_url", "domain", "image_url", "category", "source", "published_at", "fetched_at"}

// Export writes articles to w in the given format.
func Export(w io.Writer, format string, articles []*types.Article) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if articles == nil {
			articles = []*types.Article{}
		}
		if err := enc.Encode(articles); err != nil {
			return fmt.Errorf("encode JSON: %w", err)
		}
		return nil

	case FormatJSONL:
		enc := json.NewEncoder(w)
		for _, a := range articles {
			if err := enc.Encode(a); err != nil {
				return fmt.Errorf("encode JSONL line: %w", err)
			}
		}
		return nil

	case FormatCSV:
		cw := csv.NewWriter(w)
		if err := cw.Write(csvHeaders); err != nil {
			return fmt.Errorf("write CSV header: %w", err)
		}
		for _, a := range articles {
			published := ""
			if a.PublishedAt != nil {
				published = a.PublishedAt.Format(time.RFC3339)
			}
			row := []string{a.ID, a.Title, a.CanonicalURL, a.Domain, a.ImageURL, a.Category, a.Source,
				published, a.FetchedAt.Format(time.RFC3339)}
			if err := cw.Write(row); err != nil {
				return fmt.Errorf("write CSV row: %w", err)
			}
		}
		cw.Flush()
		return cw.Error()

	default:
		return fmt.Errorf("unsupported export format: %s", format)
	}
}
