package vector

import (
	"context"
	"errors"
	"testing"
)

func TestFlatIndex_AddSearch(t *testing.T) {
	idx, err := NewFlatIndex(3)
	if err != nil {
		t.Fatal(err)
	}
	defer idx.Close()
	ctx := context.Background()

	vecs := [][]float32{
		{1, 0, 0},
		{0.8, 0.6, 0},
		{0, 1, 0},
	}
	if err := idx.Add(ctx, vecs); err != nil {
		t.Fatal(err)
	}
	if idx.Size() != 3 {
		t.Errorf("Size=%d", idx.Size())
	}

	hits, err := idx.Search(ctx, []float32{1, 0, 0}, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 2 {
		t.Fatalf("expected 2 hits, got %d", len(hits))
	}
	if hits[0].Slot != 0 || hits[1].Slot != 1 {
		t.Errorf("hits = %+v, want slots [0 1]", hits)
	}
	if hits[0].Score < hits[1].Score {
		t.Errorf("scores not descending: %+v", hits)
	}
}

func TestFlatIndex_SearchFewerThanK(t *testing.T) {
	idx, _ := NewFlatIndex(2)
	ctx := context.Background()
	_ = idx.Add(ctx, [][]float32{{1, 0}, {0, 1}})
	hits, err := idx.Search(ctx, []float32{0, 1}, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 2 {
		t.Fatalf("expected all 2 vectors, got %d", len(hits))
	}
	if hits[0].Slot != 1 {
		t.Errorf("top slot = %d, want 1", hits[0].Slot)
	}
}

func TestFlatIndex_TiesKeepInsertionOrder(t *testing.T) {
	idx, _ := NewFlatIndex(2)
	ctx := context.Background()
	same := []float32{0.6, 0.8}
	_ = idx.Add(ctx, [][]float32{{0, 1}, same, same, same})
	hits, err := idx.Search(ctx, []float32{0.6, 0.8}, 3)
	if err != nil {
		t.Fatal(err)
	}
	for i, want := range []int{1, 2, 3} {
		if hits[i].Slot != want {
			t.Errorf("hits[%d].Slot = %d, want %d", i, hits[i].Slot, want)
		}
	}
}

func TestFlatIndex_SearchEmpty(t *testing.T) {
	idx, _ := NewFlatIndex(3)
	_, err := idx.Search(context.Background(), []float32{1, 0, 0}, 10)
	if !errors.Is(err, ErrEmptyIndex) {
		t.Errorf("err = %v, want ErrEmptyIndex", err)
	}
}

func TestFlatIndex_DimensionMismatchIsAtomic(t *testing.T) {
	idx, _ := NewFlatIndex(3)
	ctx := context.Background()
	_ = idx.Add(ctx, [][]float32{{1, 0, 0}})

	err := idx.Add(ctx, [][]float32{{0, 1, 0}, {1, 0}})
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Fatalf("err = %v, want ErrDimensionMismatch", err)
	}
	if idx.Size() != 1 {
		t.Errorf("Size=%d after rejected add, want 1", idx.Size())
	}

	_, err = idx.Search(ctx, []float32{1, 0}, 1)
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("search err = %v, want ErrDimensionMismatch", err)
	}
}

func TestFlatIndex_Truncate(t *testing.T) {
	idx, _ := NewFlatIndex(2)
	ctx := context.Background()
	_ = idx.Add(ctx, [][]float32{{1, 0}, {0, 1}, {0.6, 0.8}})
	view := idx.Vectors()

	if err := idx.Truncate(1); err != nil {
		t.Fatal(err)
	}
	if idx.Size() != 1 {
		t.Errorf("Size=%d, want 1", idx.Size())
	}
	_ = idx.Add(ctx, [][]float32{{-1, 0}})
	if view[1][1] != 1 {
		t.Errorf("earlier view changed after truncate+add: %v", view[1])
	}
	if err := idx.Truncate(5); err == nil {
		t.Error("expected error truncating beyond size")
	}
}

func TestFlatIndex_CopiesInput(t *testing.T) {
	idx, _ := NewFlatIndex(2)
	in := []float32{1, 0}
	_ = idx.Add(context.Background(), [][]float32{in})
	in[0] = -1
	if idx.Vectors()[0][0] != 1 {
		t.Error("index should store a copy of the input vector")
	}
}

func TestDot(t *testing.T) {
	if got := Dot([]float32{1, 2}, []float32{3, 4}); got != 11 {
		t.Errorf("Dot = %v, want 11", got)
	}
}
