package vector

import (
	"context"
	"testing"
)

func TestNewVectorIndex_Flat(t *testing.T) {
	for _, typ := range []string{"flat", "memory", ""} {
		idx, err := NewVectorIndex(typ, 3)
		if err != nil {
			t.Fatalf("NewVectorIndex(%q): %v", typ, err)
		}
		if err := idx.Add(context.Background(), [][]float32{{1, 0, 0}}); err != nil {
			t.Fatalf("Add: %v", err)
		}
		if idx.Size() != 1 {
			t.Errorf("Size=%d, want 1", idx.Size())
		}
		if idx.Type() != "flat" {
			t.Errorf("Type()=%q, want flat", idx.Type())
		}
		_ = idx.Close()
	}
}

func TestNewVectorIndex_Unknown(t *testing.T) {
	_, err := NewVectorIndex("hnsw", 3)
	if err == nil {
		t.Error("expected error for unknown index type")
	}
}

func TestNewVectorIndex_InvalidDimension(t *testing.T) {
	_, err := NewVectorIndex("flat", 0)
	if err == nil {
		t.Error("expected error for zero dimension")
	}
}

func TestNewVectorIndex_FAISS(t *testing.T) {
	idx, err := NewVectorIndex("faiss", 3)
	if !IsFAISSAvailable() {
		if err == nil {
			t.Fatal("expected error when FAISS is not compiled in")
		}
		return
	}
	if err != nil {
		t.Fatal(err)
	}
	defer idx.Close()
	if idx.Type() != "faiss" {
		t.Errorf("Type()=%q, want faiss", idx.Type())
	}
}
