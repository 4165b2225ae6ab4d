package feed

import "testing"

func TestBuildKey(t *testing.T) {
	tests := []struct {
		name      string
		directory string
		domain    string
		slug      string
		format    Format
		want      string
	}{
		{
			name:   "price history without directory",
			domain: "shop.tld",
			slug:   "widget",
			format: FormatPriceHistory,
			want:   "shop.tld/widget/price-history.json",
		},
		{
			name:   "metadata without directory",
			domain: "shop.tld2",
			slug:   "gadget",
			format: FormatMetadata,
			want:   "shop.tld2/gadget/metadata.json",
		},
		{
			name:      "with directory prefix",
			directory: "feeds/",
			domain:    "shop.tld",
			slug:      "widget",
			format:    FormatPriceHistory,
			want:      "feeds/shop.tld/widget/price-history.json",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := BuildKey(tt.directory, tt.domain, tt.slug, tt.format)
			if got != tt.want {
				t.Errorf("BuildKey() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestBuildKeyDeterministic(t *testing.T) {
	a := BuildKey("dir/", "shop.tld", "widget", FormatMetadata)
	b := BuildKey("dir/", "shop.tld", "widget", FormatMetadata)
	if a != b {
		t.Errorf("BuildKey is not deterministic: %q != %q", a, b)
	}
}

func TestBuildKeyDistinctInputsDistinctKeys(t *testing.T) {
	keys := map[string]bool{}
	for _, domain := range []string{"a.tld", "b.tld"} {
		for _, slug := range []string{"x", "y"} {
			for _, f := range []Format{FormatPriceHistory, FormatMetadata} {
				k := BuildKey("", domain, slug, f)
				if keys[k] {
					t.Errorf("key collision for %q", k)
				}
				keys[k] = true
			}
		}
	}
}

func TestNormalizeDirectory(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"feeds", "feeds/"},
		{"feeds/", "feeds/"},
		{"/feeds", "feeds/"},
		{"/feeds/", "feeds/"},
	}

	for _, tt := range tests {
		if got := NormalizeDirectory(tt.in); got != tt.want {
			t.Errorf("NormalizeDirectory(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
