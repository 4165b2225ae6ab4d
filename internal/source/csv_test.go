package source

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
)

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func gzipData(t *testing.T, data string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write([]byte(data)); err != nil {
		t.Fatalf("gzip write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("gzip close: %v", err)
	}
	return buf.Bytes()
}

func drain(t *testing.T, src RowSource) []Row {
	t.Helper()
	rowCh, errCh := src.Stream(context.Background())
	var rows []Row
	for row := range rowCh {
		rows = append(rows, row)
	}
	if err := <-errCh; err != nil {
		t.Fatalf("stream: %v", err)
	}
	return rows
}

func TestCSVSourceStreamsRows(t *testing.T) {
	path := writeFile(t, "in.csv", []byte("shop_id,slug,name\n1,widget,Gadget\n2,doodad,Widget\n"))

	src, err := NewCSVSource([]string{path})
	if err != nil {
		t.Fatalf("NewCSVSource: %v", err)
	}
	defer src.Close()

	tables, err := src.Open(context.Background())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if len(tables) != 1 {
		t.Fatalf("got %d tables, want 1", len(tables))
	}
	wantCols := []string{"shop_id", "slug", "name"}
	for i, c := range wantCols {
		if tables[0].Columns[i] != c {
			t.Errorf("Columns[%d] = %q, want %q", i, tables[0].Columns[i], c)
		}
	}

	rows := drain(t, src)
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}
	if v, _ := rows[0].String("shop_id"); v != "1" {
		t.Errorf("rows[0].shop_id = %q", v)
	}
	if v, _ := rows[1].String("name"); v != "Widget" {
		t.Errorf("rows[1].name = %q", v)
	}
}

func TestCSVSourceGzip(t *testing.T) {
	path := writeFile(t, "in.csv.gz", gzipData(t, "shop_id,slug\n1,widget\n"))

	src, err := NewCSVSource([]string{path})
	if err != nil {
		t.Fatalf("NewCSVSource: %v", err)
	}

	tables, err := src.Open(context.Background())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if len(tables[0].Columns) != 2 {
		t.Fatalf("Columns = %v", tables[0].Columns)
	}

	rows := drain(t, src)
	if len(rows) != 1 {
		t.Fatalf("got %d rows, want 1", len(rows))
	}
	if v, _ := rows[0].String("slug"); v != "widget" {
		t.Errorf("slug = %q", v)
	}
}

func TestCSVSourceMultipleFiles(t *testing.T) {
	a := writeFile(t, "a.csv", []byte("shop_id,slug\n1,x\n"))
	b := writeFile(t, "b.csv", []byte("shop_id,slug\n2,y\n3,z\n"))

	src, err := NewCSVSource([]string{a, b})
	if err != nil {
		t.Fatalf("NewCSVSource: %v", err)
	}
	if _, err := src.Open(context.Background()); err != nil {
		t.Fatalf("Open: %v", err)
	}

	rows := drain(t, src)
	if len(rows) != 3 {
		t.Fatalf("got %d rows, want rows of both files in order", len(rows))
	}
	if v, _ := rows[0].String("slug"); v != "x" {
		t.Errorf("first row slug = %q, want file order preserved", v)
	}
}

func TestCSVSourceRejectsMissingPath(t *testing.T) {
	if _, err := NewCSVSource([]string{"/does/not/exist.csv"}); err == nil {
		t.Error("NewCSVSource accepted a missing path")
	}
	if _, err := NewCSVSource(nil); err == nil {
		t.Error("NewCSVSource accepted empty path list")
	}
}

func TestRequireColumns(t *testing.T) {
	table := Table{Name: "in.csv", Columns: []string{"shop_id", "slug", "json"}}

	if err := RequireColumns(table, "shop_id", "slug"); err != nil {
		t.Errorf("RequireColumns: %v", err)
	}

	err := RequireColumns(table, "shop_id", "price", "stock")
	if err == nil {
		t.Fatal("RequireColumns accepted missing columns")
	}
	var mce *MissingColumnsError
	if !errors.As(err, &mce) {
		t.Fatalf("error type = %T", err)
	}
	if len(mce.Missing) != 2 || mce.Missing[0] != "price" || mce.Missing[1] != "stock" {
		t.Errorf("Missing = %v", mce.Missing)
	}
	if mce.Table != "in.csv" {
		t.Errorf("Table = %q", mce.Table)
	}
}

func TestRowString(t *testing.T) {
	row := Row{"a": "text", "b": []byte("bytes"), "c": 7, "d": nil}

	if v, ok := row.String("a"); !ok || v != "text" {
		t.Errorf("String(a) = %q, %v", v, ok)
	}
	if v, ok := row.String("b"); !ok || v != "bytes" {
		t.Errorf("String(b) = %q, %v", v, ok)
	}
	if v, ok := row.String("c"); !ok || v != "7" {
		t.Errorf("String(c) = %q, %v", v, ok)
	}
	if _, ok := row.String("d"); ok {
		t.Error("String(d) reported ok for nil value")
	}
	if _, ok := row.String("missing"); ok {
		t.Error("String(missing) reported ok")
	}
}

func TestNewRowSourceModes(t *testing.T) {
	path := writeFile(t, "in.csv", []byte("shop_id,slug\n"))

	if _, err := NewRowSource(Config{Mode: "csv", Paths: []string{path}}); err != nil {
		t.Errorf("csv mode: %v", err)
	}
	if _, err := NewRowSource(Config{Paths: []string{path}}); err != nil {
		t.Errorf("default mode: %v", err)
	}
	if _, err := NewRowSource(Config{Mode: "carrier-pigeon"}); !errors.Is(err, ErrInvalidSourceMode) {
		t.Errorf("unknown mode error = %v", err)
	}
}
