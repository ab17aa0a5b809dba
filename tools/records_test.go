package tools

import (
	"context"
	"testing"

	"github.com/docsearch/mcp-server/internal/searchindex"
)

func TestListPages(t *testing.T) {
	cfg := useTestSettings(t)

	_, out, err := ListPages(context.Background(), nil, ListPagesInput{})
	if err != nil {
		t.Fatalf("ListPages failed: %v", err)
	}

	if out.TotalRecords != 18 {
		t.Errorf("TotalRecords = %d, want 18", out.TotalRecords)
	}
	if out.Source != sourceEmbedded {
		t.Errorf("Source = %q, want %q", out.Source, sourceEmbedded)
	}
	if len(out.Pages) != 1 {
		t.Fatalf("Expected 1 page, got %d: %+v", len(out.Pages), out.Pages)
	}

	home := out.Pages[0]
	if home.Page != "Home" || home.Records != 18 {
		t.Errorf("Unexpected page summary: %+v", home)
	}
	want := map[string]int{"section": 1, "page": 5, "method": 12}
	for cat, n := range want {
		if home.ByCategory[cat] != n {
			t.Errorf("ByCategory[%s] = %d, want %d", cat, home.ByCategory[cat], n)
		}
	}
	if home.URL != cfg.BaseURL {
		t.Errorf("URL = %q, want %q", home.URL, cfg.BaseURL)
	}
}

func TestGetPage(t *testing.T) {
	useTestSettings(t)

	tests := []struct {
		name      string
		input     GetPageInput
		wantErr   bool
		wantFound bool
		wantCount int
	}{
		{"all records", GetPageInput{Page: "Home"}, false, true, 18},
		{"methods only", GetPageInput{Page: "Home", Category: "method"}, false, true, 12},
		{"unknown page", GetPageInput{Page: "Nowhere"}, false, false, 0},
		{"empty page", GetPageInput{}, true, false, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, out, err := GetPage(context.Background(), nil, tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if out.Found != tt.wantFound {
				t.Errorf("Found = %v, want %v", out.Found, tt.wantFound)
			}
			if len(out.Records) != tt.wantCount {
				t.Errorf("records = %d, want %d", len(out.Records), tt.wantCount)
			}
		})
	}
}

func TestGetPage_OrderAndCleanText(t *testing.T) {
	useTestSettings(t)

	_, out, err := GetPage(context.Background(), nil, GetPageInput{Page: "Home"})
	if err != nil {
		t.Fatalf("GetPage failed: %v", err)
	}
	for i, r := range out.Records {
		if r.Position != i {
			t.Errorf("record %d has position %d", i, r.Position)
		}
	}
	if got := out.Records[0].Title; got != "NiLang.jl" {
		t.Errorf("first title = %q, want NiLang.jl", got)
	}
	if got := out.Records[10].Content; got != "NEG(a!) -> -a!" {
		t.Errorf("NEG text = %q, want trailing newlines trimmed", got)
	}
}

func TestLookupLocation(t *testing.T) {
	cfg := useTestSettings(t)

	tests := []struct {
		location  string
		want      string
		wantCount int
	}{
		{"#NiLang.SWAP-Tuple{Number,Number}", "#NiLang.SWAP-Tuple{Number,Number}", 1},
		{"NiLang.SWAP-Tuple{Number,Number}", "#NiLang.SWAP-Tuple{Number,Number}", 1},
		{"#", "#", 5},
		{"#missing", "#missing", 0},
		{"missing", "missing", 0},
	}

	for _, tt := range tests {
		t.Run(tt.location, func(t *testing.T) {
			_, out, err := LookupLocation(context.Background(), nil, LookupLocationInput{Location: tt.location})
			if err != nil {
				t.Fatalf("LookupLocation failed: %v", err)
			}
			if out.Location != tt.want {
				t.Errorf("Location = %q, want %q", out.Location, tt.want)
			}
			if len(out.Records) != tt.wantCount {
				t.Errorf("records = %d, want %d", len(out.Records), tt.wantCount)
			}
			if len(out.Records) == 1 {
				r := out.Records[0]
				if r.Position != 12 || r.Title != "NiLang.SWAP" {
					t.Errorf("Unexpected record: %+v", r)
				}
				if want := cfg.BaseURL + tt.want; r.URL != want {
					t.Errorf("URL = %q, want %q", r.URL, want)
				}
			}
		})
	}

	if _, _, err := LookupLocation(context.Background(), nil, LookupLocationInput{}); err == nil {
		t.Error("Expected error for empty location")
	}
}

func TestLookupLocation_MultiPage(t *testing.T) {
	cfg := useTestSettings(t)

	records := searchindex.NewCollection("", []searchindex.Record{
		{Location: "#Home", Page: "Home", Title: "Home", Category: "page", Text: "start"},
		{Location: "man/guide/#Guide", Page: "Guide", Title: "Guide", Category: "page", Text: "intro"},
		{Location: "man/guide/#Guide.run", Page: "Guide", Title: "Guide.run", Category: "method", Text: "run()\n\n"},
	})
	indexMgr.install(newSnapshot(newMockIndex(1), records, sourceCache, false))

	_, out, err := LookupLocation(context.Background(), nil, LookupLocationInput{Location: "man/guide/#Guide.run"})
	if err != nil {
		t.Fatalf("LookupLocation failed: %v", err)
	}
	if len(out.Records) != 1 {
		t.Fatalf("records = %d, want 1", len(out.Records))
	}
	r := out.Records[0]
	if r.Position != 2 || r.Content != "run()" {
		t.Errorf("Unexpected record: %+v", r)
	}
	if want := cfg.BaseURL + "man/guide/#Guide.run"; r.URL != want {
		t.Errorf("URL = %q, want %q", r.URL, want)
	}
	if out.Location != "man/guide/#Guide.run" {
		t.Errorf("Location = %q", out.Location)
	}

	_, out, err = LookupLocation(context.Background(), nil, LookupLocationInput{Location: "Home"})
	if err != nil {
		t.Fatalf("LookupLocation failed: %v", err)
	}
	if out.Location != "#Home" || len(out.Records) != 1 {
		t.Errorf("Bare name should fall back to #Home, got %q with %d records", out.Location, len(out.Records))
	}
}
