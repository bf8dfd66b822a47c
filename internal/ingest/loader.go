// Package ingest loads (id, text) product exports and feeds them to the engine in batches.
package ingest

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/Skynet843/IntentSearch/internal/models"
)

// ErrUnsupportedFormat is returned for files whose extension has no loader.
var ErrUnsupportedFormat = errors.New("unsupported import format")

// SupportedExtensions lists the extensions ReadFile understands.
var SupportedExtensions = []string{".jsonl", ".csv", ".xlsx"}

// IsSupported reports whether path has a loadable extension.
func IsSupported(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range SupportedExtensions {
		if e == ext {
			return true
		}
	}
	return false
}

// ReadFile loads products from path, choosing the loader by extension.
func ReadFile(path string) ([]models.Product, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return ReadBytes(content, filepath.Ext(path))
}

// ReadBytes loads products from content in the format named by ext.
func ReadBytes(content []byte, ext string) ([]models.Product, error) {
	switch strings.ToLower(ext) {
	case ".jsonl":
		return readJSONL(bytes.NewReader(content))
	case ".csv":
		return readCSV(bytes.NewReader(content))
	case ".xlsx":
		return readXLSX(content)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
}

func readJSONL(r io.Reader) ([]models.Product, error) {
	var products []models.Product
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 16<<20)
	line := 0
	for sc.Scan() {
		line++
		raw := bytes.TrimSpace(sc.Bytes())
		if len(raw) == 0 {
			continue
		}
		var p models.Product
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if p.ID == "" {
			return nil, fmt.Errorf("line %d: missing id", line)
		}
		products = append(products, p)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return products, nil
}

func readCSV(r io.Reader) ([]models.Product, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	return fromRows(rows)
}

func readXLSX(content []byte) ([]models.Product, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("open Excel: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("get rows for sheet %q: %w", sheets[0], err)
	}
	return fromRows(rows)
}

// fromRows maps a header row with "id" and "text" columns (any order, any case) to products.
// Fully blank rows are skipped.
func fromRows(rows [][]string) ([]models.Product, error) {
	if len(rows) == 0 {
		return nil, nil
	}
	idCol, textCol := -1, -1
	for i, h := range rows[0] {
		switch strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))) {
		case "id":
			idCol = i
		case "text":
			textCol = i
		}
	}
	if idCol < 0 || textCol < 0 {
		return nil, fmt.Errorf("header must contain id and text columns, got %v", rows[0])
	}

	var products []models.Product
	for n, row := range rows[1:] {
		id := strings.TrimSpace(cell(row, idCol))
		text := cell(row, textCol)
		if id == "" && strings.TrimSpace(text) == "" {
			continue
		}
		if id == "" {
			return nil, fmt.Errorf("row %d: missing id", n+2)
		}
		products = append(products, models.Product{ID: id, Text: text})
	}
	return products, nil
}

func cell(row []string, i int) string {
	if i < len(row) {
		return row[i]
	}
	return ""
}
