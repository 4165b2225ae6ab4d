package uploader

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/shopwatch/feed-uploader/internal/config"
	"github.com/shopwatch/feed-uploader/internal/shops"
	"github.com/shopwatch/feed-uploader/internal/source"
	"github.com/shopwatch/feed-uploader/internal/storage"
)

func writeCSV(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func testRunner(t *testing.T, cfg config.Config, csvPath string) (*Runner, string) {
	t.Helper()

	src, err := source.NewCSVSource([]string{csvPath})
	if err != nil {
		t.Fatalf("NewCSVSource: %v", err)
	}

	outDir := t.TempDir()
	store, err := storage.NewLocalStore(outDir)
	if err != nil {
		t.Fatalf("NewLocalStore: %v", err)
	}

	resolver := shops.NewStaticResolverFromMap(map[string]string{
		"1": "shop.tld",
		"2": "shop.tld2",
	})

	runner, err := NewRunner(cfg, src, resolver, store)
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}
	return runner, outDir
}

func baseConfig(format string) config.Config {
	cfg := config.Default()
	cfg.Format = format
	cfg.AWSBucket = "test-bucket"
	cfg.Workers = 2
	cfg.Chunksize = 2
	return cfg
}

func readUploaded(t *testing.T, outDir, key string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(outDir, key))
	if err != nil {
		t.Fatalf("read uploaded object %s: %v", key, err)
	}
	return string(data)
}

func TestRunnerPriceHistory(t *testing.T) {
	csvPath := writeCSV(t, "rows.csv",
		"shop_id,slug,json\n"+
			`1,widget,"{""p"":10}"`+"\n"+
			`2,gadget,"[1,2]"`+"\n")

	runner, outDir := testRunner(t, baseConfig("pricehistory"), csvPath)
	summary, err := runner.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if !summary.OK() || summary.Succeeded != 2 {
		t.Fatalf("summary = %+v, want 2 successful uploads", summary)
	}
	if got := readUploaded(t, outDir, "shop.tld/widget/price-history.json"); got != `{"p":10}` {
		t.Errorf("uploaded body = %s, want pass-through payload", got)
	}
	if got := readUploaded(t, outDir, "shop.tld2/gadget/price-history.json"); got != `[1,2]` {
		t.Errorf("uploaded body = %s", got)
	}
}

func TestRunnerMetadata(t *testing.T) {
	csvPath := writeCSV(t, "rows.csv",
		"shop_id,slug,name,price\n"+
			"1,widget,Gadget,9.99\n")

	cfg := baseConfig("metadata")
	cfg.FieldDatatypes = map[string]string{"price": "float"}

	runner, outDir := testRunner(t, cfg, csvPath)
	summary, err := runner.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if !summary.OK() || summary.Succeeded != 1 {
		t.Fatalf("summary = %+v, want 1 successful upload", summary)
	}
	if got := readUploaded(t, outDir, "shop.tld/widget/metadata.json"); got != `{"name":"Gadget","price":9.99}` {
		t.Errorf("uploaded body = %s", got)
	}
}

func TestRunnerDirectoryPrefix(t *testing.T) {
	csvPath := writeCSV(t, "rows.csv",
		"shop_id,slug,json\n"+
			`1,widget,"{}"`+"\n")

	cfg := baseConfig("pricehistory")
	cfg.AWSDirectory = "/feeds"

	runner, outDir := testRunner(t, cfg, csvPath)
	summary, err := runner.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !summary.OK() {
		t.Fatalf("summary = %+v", summary)
	}
	if got := readUploaded(t, outDir, "feeds/shop.tld/widget/price-history.json"); got != `{}` {
		t.Errorf("uploaded body = %s", got)
	}
}

func TestRunnerRowFailuresDoNotAbort(t *testing.T) {
	csvPath := writeCSV(t, "rows.csv",
		"shop_id,slug,json\n"+
			`1,widget,"{""p"":10}"`+"\n"+
			"1,broken,{not valid\n"+
			`999,unknown,"{}"`+"\n"+
			`1,,"{}"`+"\n")

	runner, outDir := testRunner(t, baseConfig("pricehistory"), csvPath)
	summary, err := runner.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if summary.Succeeded != 1 {
		t.Errorf("succeeded = %d, want 1", summary.Succeeded)
	}
	if summary.Failed != 3 {
		t.Errorf("failed = %d, want one per bad row, got failures %+v", summary.Failed, summary.Failures)
	}
	if summary.OK() {
		t.Error("OK() = true for a run with row failures")
	}
	if got := readUploaded(t, outDir, "shop.tld/widget/price-history.json"); got != `{"p":10}` {
		t.Errorf("healthy row not uploaded, got %s", got)
	}
}

func TestRunnerMissingRequiredColumnAborts(t *testing.T) {
	csvPath := writeCSV(t, "rows.csv",
		"shop_id,name\n"+
			"1,Gadget\n")

	runner, _ := testRunner(t, baseConfig("metadata"), csvPath)
	_, err := runner.Run(context.Background())
	if err == nil {
		t.Fatal("Run accepted input missing the slug column")
	}
	var mce *source.MissingColumnsError
	if !errors.As(err, &mce) {
		t.Errorf("error = %v, want MissingColumnsError", err)
	}
}

func TestRunnerPriceHistoryRequiresJSONColumn(t *testing.T) {
	csvPath := writeCSV(t, "rows.csv",
		"shop_id,slug\n"+
			"1,widget\n")

	runner, _ := testRunner(t, baseConfig("pricehistory"), csvPath)
	_, err := runner.Run(context.Background())
	var mce *source.MissingColumnsError
	if !errors.As(err, &mce) {
		t.Fatalf("error = %v, want MissingColumnsError for json", err)
	}
}

func TestRunnerAbortedRunIsNotOK(t *testing.T) {
	csvPath := writeCSV(t, "rows.csv",
		"shop_id,slug,json\n"+
			`1,widget,"{""p"":10}"`+"\n")

	runner, _ := testRunner(t, baseConfig("pricehistory"), csvPath)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary, err := runner.Run(ctx)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !summary.Canceled {
		t.Error("Canceled = false for an aborted run")
	}
	if summary.OK() {
		t.Error("OK() = true for an aborted run; exit-code mapping would report it clean")
	}
	if summary.Failed != 0 {
		t.Errorf("failed = %d, abort must not fabricate upload failures", summary.Failed)
	}
}

func TestRunnerRejectsUnknownFormat(t *testing.T) {
	cfg := config.Default()
	cfg.Format = "xml"
	if _, err := NewRunner(cfg, nil, nil, nil); err == nil {
		t.Fatal("NewRunner accepted unknown format")
	}
}

func TestUnionColumns(t *testing.T) {
	got := unionColumns([]source.Table{
		{Name: "a", Columns: []string{"shop_id", "slug", "name"}},
		{Name: "b", Columns: []string{"slug", "price", "shop_id"}},
	})
	want := []string{"shop_id", "slug", "name", "price"}
	if len(got) != len(want) {
		t.Fatalf("unionColumns = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("unionColumns = %v, want %v", got, want)
		}
	}
}
