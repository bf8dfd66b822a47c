package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/Skynet843/IntentSearch/internal/models"
)

type fakeAppender struct {
	known   map[string]bool
	batches [][]models.Product
	failOn  int
}

func (f *fakeAppender) Append(ctx context.Context, products []models.Product) (*models.AppendResult, error) {
	if f.failOn > 0 && len(f.batches)+1 == f.failOn {
		return nil, errors.New("injected failure")
	}
	f.batches = append(f.batches, products)
	for _, p := range products {
		f.known[p.ID] = true
	}
	return &models.AppendResult{Appended: len(products), Total: len(f.known), BatchID: fmt.Sprint(len(f.batches))}, nil
}

func (f *fakeAppender) Contains(id string) bool { return f.known[id] }

func products(n int) []models.Product {
	out := make([]models.Product, n)
	for i := range out {
		out[i] = models.Product{ID: fmt.Sprintf("p%d", i), Text: fmt.Sprintf("product %d", i)}
	}
	return out
}

func TestImporter_Batches(t *testing.T) {
	target := &fakeAppender{known: map[string]bool{}}
	var progress []int
	im := NewImporter(target, 2, WithProgress(func(n int) { progress = append(progress, n) }))

	stats, err := im.Import(context.Background(), products(5))
	if err != nil {
		t.Fatal(err)
	}
	if stats.Read != 5 || stats.Appended != 5 || stats.Batches != 3 {
		t.Errorf("stats: %+v", stats)
	}
	if len(target.batches) != 3 || len(target.batches[2]) != 1 {
		t.Errorf("batches: %v", target.batches)
	}
	if fmt.Sprint(progress) != "[2 2 1]" {
		t.Errorf("progress: %v", progress)
	}
}

func TestImporter_SkipExisting(t *testing.T) {
	target := &fakeAppender{known: map[string]bool{"p1": true}}
	im := NewImporter(target, 10, WithSkipExisting(true))
	in := append(products(3), models.Product{ID: "p2", Text: "again"})

	stats, err := im.Import(context.Background(), in)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Skipped != 2 || stats.Appended != 2 {
		t.Errorf("stats: %+v", stats)
	}
	if got := target.batches[0]; len(got) != 2 || got[0].ID != "p0" || got[1].ID != "p2" || got[1].Text != "product 2" {
		t.Errorf("batch: %+v", got)
	}
}

func TestImporter_StopsAtFailedBatch(t *testing.T) {
	target := &fakeAppender{known: map[string]bool{}, failOn: 2}
	im := NewImporter(target, 2)
	stats, err := im.Import(context.Background(), products(6))
	if err == nil {
		t.Fatal("expected error")
	}
	if stats.Batches != 1 || stats.Appended != 2 {
		t.Errorf("stats: %+v", stats)
	}
}

func TestImporter_ImportFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "export.csv")
	if err := os.WriteFile(path, []byte("id,text\na,alpha\nb,beta\n"), 0644); err != nil {
		t.Fatal(err)
	}
	target := &fakeAppender{known: map[string]bool{}}
	stats, err := NewImporter(target, 0).ImportFile(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Appended != 2 || !target.Contains("b") {
		t.Errorf("stats: %+v", stats)
	}
}
