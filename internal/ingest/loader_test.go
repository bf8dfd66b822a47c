package ingest

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/xuri/excelize/v2"
)

func TestReadBytes_jsonl(t *testing.T) {
	content := []byte(`{"id":"p1","text":"red running shoes"}

{"id":"p2","text":""}
`)
	got, err := ReadBytes(content, ".jsonl")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].ID != "p1" || got[0].Text != "red running shoes" || got[1].Text != "" {
		t.Errorf("got %+v", got)
	}
}

func TestReadBytes_jsonlErrors(t *testing.T) {
	if _, err := ReadBytes([]byte(`{"id":"p1"`), ".jsonl"); err == nil {
		t.Error("expected error for malformed line")
	}
	if _, err := ReadBytes([]byte(`{"text":"no id"}`), ".jsonl"); err == nil {
		t.Error("expected error for missing id")
	}
}

func TestReadBytes_csv(t *testing.T) {
	content := []byte("\ufeffText,ID,price\n\"Blue hat, wool\",h1,10\n,,\nplain mug,m1\n")
	got, err := ReadBytes(content, ".CSV")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("got %+v", got)
	}
	if got[0].ID != "h1" || got[0].Text != "Blue hat, wool" {
		t.Errorf("row 1: %+v", got[0])
	}
	if got[1].ID != "m1" || got[1].Text != "plain mug" {
		t.Errorf("row 2: %+v", got[1])
	}
}

func TestReadBytes_csvMissingColumns(t *testing.T) {
	if _, err := ReadBytes([]byte("sku,title\n1,x\n"), ".csv"); err == nil {
		t.Error("expected error for header without id/text")
	}
	if _, err := ReadBytes([]byte("id,text\n,orphan text\n"), ".csv"); err == nil {
		t.Error("expected error for row without id")
	}
}

func TestReadBytes_xlsx(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	f.SetCellValue("Sheet1", "A1", "id")
	f.SetCellValue("Sheet1", "B1", "text")
	f.SetCellValue("Sheet1", "A2", "x1")
	f.SetCellValue("Sheet1", "B2", "Stainless steel water bottle")
	f.SetCellValue("Sheet1", "A3", "x2")
	f.SetCellValue("Sheet1", "B3", "Bamboo cutting board")
	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}

	got, err := ReadBytes(buf.Bytes(), ".xlsx")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[1].ID != "x2" || got[1].Text != "Bamboo cutting board" {
		t.Errorf("got %+v", got)
	}
}

func TestReadBytes_unsupported(t *testing.T) {
	if _, err := ReadBytes([]byte("x"), ".pdf"); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestReadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "products.jsonl")
	if err := os.WriteFile(path, []byte(`{"id":"a","text":"b"}`+"\n"), 0644); err != nil {
		t.Fatal(err)
	}
	got, err := ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Errorf("got %+v", got)
	}
	if _, err := ReadFile(filepath.Join(t.TempDir(), "missing.csv")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestIsSupported(t *testing.T) {
	for path, want := range map[string]bool{
		"a.jsonl": true, "b.CSV": true, "c.xlsx": true, "d.txt": false, "e": false,
	} {
		if got := IsSupported(path); got != want {
			t.Errorf("IsSupported(%q)=%v, want %v", path, got, want)
		}
	}
}
