package excel

import (
	"os"
	"path/filepath"
	"testing"

	"lassoc/internal/errors"
)

func writeTempCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data.csv")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}
	return path
}

func TestDataReader_LoadCSV(t *testing.T) {
	path := writeTempCSV(t, "drug,recovered\nyes,yes\nyes,no\nno,yes\n")

	frame, err := NewDataReader(path).Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if frame.Rows() != 3 {
		t.Errorf("rows = %d, want 3", frame.Rows())
	}
	col, ok := frame.Column("drug")
	if !ok {
		t.Fatal("column drug missing")
	}
	if col.Variable.Cardinality() != 2 {
		t.Errorf("drug cardinality = %d, want 2", col.Variable.Cardinality())
	}
}

func TestDataReader_TrimsWhitespace(t *testing.T) {
	path := writeTempCSV(t, " a , b \n x , y \n")

	frame, err := NewDataReader(path).Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	col, ok := frame.Column("a")
	if !ok {
		t.Fatalf("trimmed header not found, keys: %v", frame.Keys())
	}
	if col.Labels[0] != "x" {
		t.Errorf("label = %q, want trimmed %q", col.Labels[0], "x")
	}
}

func TestDataReader_ShortRowsPadAsMissing(t *testing.T) {
	path := writeTempCSV(t, "a,b\nx\n")

	frame, err := NewDataReader(path).Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	col, _ := frame.Column("b")
	if !col.Labels[0].IsMissing() {
		t.Errorf("short row cell = %q, want missing", col.Labels[0])
	}
}

func TestDataReader_Errors(t *testing.T) {
	if _, err := NewDataReader("/nonexistent/data.csv").Load(); !errors.IsDataInvalid(err) {
		t.Errorf("expected DATA_INVALID for missing file, got %v", err)
	}

	headerOnly := writeTempCSV(t, "a,b\n")
	if _, err := NewDataReader(headerOnly).Load(); !errors.IsDataInvalid(err) {
		t.Errorf("expected DATA_INVALID for header-only file, got %v", err)
	}
}
