// Package cli provides output helpers for the intentsearch command.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/Skynet843/IntentSearch/internal/models"
	"github.com/Skynet843/IntentSearch/internal/retrieval"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputCompact prints one product id per line.
	OutputCompact OutputFormat = "compact"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseOutputFormat accepts text, compact or json.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(s); f {
	case OutputText, OutputCompact, OutputJSON:
		return f, nil
	case "":
		return OutputText, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want text, compact or json)", s)
	}
}

// WriteSearchResults writes search results to w in the given format.
func WriteSearchResults(w io.Writer, response *models.SearchResponse, format OutputFormat) error {
	switch format {
	case OutputJSON:
		return writeJSON(w, response)
	case OutputCompact:
		for _, id := range response.IDs {
			if _, err := fmt.Fprintln(w, id); err != nil {
				return err
			}
		}
		return nil
	default:
		writeSearchResultsText(w, response)
		return nil
	}
}

func writeSearchResultsText(w io.Writer, response *models.SearchResponse) {
	order := "embedding order"
	switch {
	case response.Reranked:
		order = "reranked"
	case response.RerankFallback:
		order = "embedding order, reranker unavailable"
	}
	fmt.Fprintf(w, "\nFound %d results for %q in %dms (%s)\n\n", response.Total, response.Query, response.QueryTime, order)
	if len(response.Results) == 0 {
		for i, id := range response.IDs {
			fmt.Fprintf(w, "%3d. %s\n", i+1, id)
		}
		return
	}
	for _, r := range response.Results {
		fmt.Fprintf(w, "%3d. %s  score %.4f  similarity %.4f", r.Rank, r.ID, r.Score, r.Similarity)
		if r.RerankScore != nil {
			fmt.Fprintf(w, "  rerank %.4f", *r.RerankScore)
		}
		fmt.Fprintln(w)
	}
}

// WriteStats writes engine statistics to w in the given format. Compact prints the product count.
func WriteStats(w io.Writer, stats retrieval.Stats, format OutputFormat) error {
	switch format {
	case OutputJSON:
		return writeJSON(w, stats)
	case OutputCompact:
		_, err := fmt.Fprintln(w, stats.Products)
		return err
	}
	fmt.Fprintf(w, "Products:     %d\n", stats.Products)
	fmt.Fprintf(w, "Dimensions:   %d\n", stats.Dimensions)
	fmt.Fprintf(w, "Index:        %s\n", stats.IndexType)
	fmt.Fprintf(w, "Store:        %s (%s)\n", stats.StoreType, stats.StorePath)
	fmt.Fprintf(w, "Disk usage:   %s\n", FormatBytes(stats.StoreBytes))
	fmt.Fprintf(w, "Reranker:     %s\n", stats.Reranker)
	if stats.LastBatchID != "" {
		fmt.Fprintf(w, "Last batch:   %s\n", stats.LastBatchID)
	}
	if stats.Corrupted {
		fmt.Fprintln(w, "State:        CORRUPTED (reload required)")
	}
	return nil
}

// PrintSearchResults prints search results to stdout in text format.
func PrintSearchResults(response *models.SearchResponse) {
	_ = WriteSearchResults(os.Stdout, response, OutputText)
}

// FormatBytes renders n with a binary unit suffix.
func FormatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
