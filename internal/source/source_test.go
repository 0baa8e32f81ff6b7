package source_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"metaledger/internal/document"
	"metaledger/internal/source"
	"metaledger/internal/testsupport"
)

func collect(t *testing.T, c source.Connector) ([]document.Document, []error) {
	t.Helper()
	var (
		docs []document.Document
		errs []error
	)
	for doc, err := range c.Records(context.Background()) {
		if err != nil {
			errs = append(errs, err)
			continue
		}
		docs = append(docs, doc)
	}
	return docs, errs
}

func TestCSVConnectorStripsBOMAndKeepsBlankCells(t *testing.T) {
	path := filepath.Join(t.TempDir(), "feed.csv")
	testsupport.WriteFile(t, path, "\ufeffLearningResourceIdentifier,Name,Note\nC1,Intro,\nC2,\"Two, words\",x\n")

	conn, err := source.NewFileConnector(path, "csv", "utf-8")
	if err != nil {
		t.Fatalf("NewFileConnector returned error: %v", err)
	}
	docs, errs := collect(t, conn)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if len(docs) != 2 {
		t.Fatalf("expected 2 records, got %d", len(docs))
	}
	if docs[0]["LearningResourceIdentifier"] != "C1" {
		t.Fatalf("expected BOM to be stripped from header, got %v", docs[0])
	}
	if v, ok := docs[0]["Note"]; !ok || v != "" {
		t.Fatalf("expected blank cell to be kept as empty string, got %v", docs[0])
	}
	if docs[1]["Name"] != "Two, words" {
		t.Fatalf("unexpected quoted value: %v", docs[1]["Name"])
	}
}

func TestCSVConnectorDecodesWindows1252(t *testing.T) {
	path := filepath.Join(t.TempDir(), "feed.csv")
	// 0xE9 is é in Windows-1252.
	if err := os.WriteFile(path, []byte("Name\nCaf\xe9\n"), 0o644); err != nil {
		t.Fatalf("write feed: %v", err)
	}
	conn, err := source.NewFileConnector(path, "csv", "windows-1252")
	if err != nil {
		t.Fatalf("NewFileConnector returned error: %v", err)
	}
	docs, errs := collect(t, conn)
	if len(errs) != 0 || len(docs) != 1 {
		t.Fatalf("unexpected result: docs=%v errs=%v", docs, errs)
	}
	if docs[0]["Name"] != "Café" {
		t.Fatalf("expected decoded text, got %q", docs[0]["Name"])
	}
}

func TestJSONLinesConnectorSkipsMalformedLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "feed.jsonl")
	testsupport.WriteFile(t, path, "{\"LearningResourceIdentifier\":\"C1\",\"Credits\":3}\n\nnot json\n{\"LearningResourceIdentifier\":\"C2\"}\n")

	conn, err := source.NewFileConnector(path, "jsonl", "")
	if err != nil {
		t.Fatalf("NewFileConnector returned error: %v", err)
	}
	docs, errs := collect(t, conn)
	if len(docs) != 2 {
		t.Fatalf("expected 2 records, got %d", len(docs))
	}
	if len(errs) != 1 {
		t.Fatalf("expected 1 error, got %v", errs)
	}
	var recErr *source.RecordError
	if !errors.As(errs[0], &recErr) || recErr.Position != 3 {
		t.Fatalf("expected record error at line 3, got %v", errs[0])
	}
	if credits, _ := docs[0].LookupString("Credits"); credits != "3" {
		t.Fatalf("expected number to keep its text form, got %q", credits)
	}
}

func TestJSONArrayConnector(t *testing.T) {
	path := filepath.Join(t.TempDir(), "feed.json")
	testsupport.WriteFile(t, path, `[{"LearningResourceIdentifier":"C1","Course":{"Title":"T"}}, "bad", {"LearningResourceIdentifier":"C2"}]`)

	conn, err := source.NewFileConnector(path, "json", "utf-8")
	if err != nil {
		t.Fatalf("NewFileConnector returned error: %v", err)
	}
	docs, errs := collect(t, conn)
	if len(docs) != 2 || len(errs) != 1 {
		t.Fatalf("unexpected result: docs=%d errs=%v", len(docs), errs)
	}
	if title, _ := docs[0].LookupString("Course.Title"); title != "T" {
		t.Fatalf("expected nested object to survive, got %v", docs[0])
	}
}

func TestMissingFileIsFatal(t *testing.T) {
	conn, err := source.NewFileConnector(filepath.Join(t.TempDir(), "absent.csv"), "csv", "utf-8")
	if err != nil {
		t.Fatalf("NewFileConnector returned error: %v", err)
	}
	_, errs := collect(t, conn)
	if len(errs) != 1 {
		t.Fatalf("expected a single error, got %v", errs)
	}
	var recErr *source.RecordError
	if errors.As(errs[0], &recErr) {
		t.Fatal("expected open failure not to be a record error")
	}
}

func TestNewFileConnectorRejectsUnknownSettings(t *testing.T) {
	if _, err := source.NewFileConnector("x", "xml", "utf-8"); err == nil {
		t.Fatal("expected unknown format to fail")
	}
	if _, err := source.NewFileConnector("x", "csv", "ebcdic"); err == nil {
		t.Fatal("expected unknown encoding to fail")
	}
}

func TestStaticConnectorYieldsCopies(t *testing.T) {
	orig := document.Document{"A": "1"}
	conn := source.Static{orig}
	docs, _ := collect(t, conn)
	docs[0]["A"] = "2"
	if orig["A"] != "1" {
		t.Fatal("expected static connector to yield copies")
	}
}
