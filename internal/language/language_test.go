package language

import "testing"

func TestCatalogCodesWellFormed(t *testing.T) {
	seen := make(map[string]struct{}, len(catalog))
	for _, l := range catalog {
		if len(l.Base()) != 3 || len(l.Script()) != 4 {
			t.Errorf("malformed code %q", l.Code)
		}
		if l.Name == "" {
			t.Errorf("missing name for %q", l.Code)
		}
		if _, dup := seen[l.Code]; dup {
			t.Errorf("duplicate code %q", l.Code)
		}
		seen[l.Code] = struct{}{}
	}
	if Count() < 200 {
		t.Fatalf("catalog has %d entries, want at least 200", Count())
	}
}

func TestLookupAndSupported(t *testing.T) {
	l, ok := Lookup("fra_Latn")
	if !ok || l.Name != "French" {
		t.Fatalf("Lookup(fra_Latn) = %+v, %v", l, ok)
	}
	if Supported("fra_latn") {
		t.Fatal("Supported should be case-sensitive")
	}
	if Supported("xx_Latn") {
		t.Fatal("unknown code reported as supported")
	}
}

func TestResolve(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"eng_Latn", "eng_Latn"},
		{"DEU_LATN", "deu_Latn"},
		{"French", "fra_Latn"},
		{"fr", "fra_Latn"},
		{"ja", "jpn_Jpan"},
		{"zh-Hant", "zho_Hant"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := Resolve(tt.input)
			if !ok {
				t.Fatalf("Resolve(%q) failed", tt.input)
			}
			if got.Code != tt.want {
				t.Fatalf("Resolve(%q) = %s, want %s", tt.input, got.Code, tt.want)
			}
		})
	}
	if _, ok := Resolve("   "); ok {
		t.Fatal("blank input should not resolve")
	}
	if _, ok := Resolve("Klingon"); ok {
		t.Fatal("unknown name should not resolve")
	}
}

func TestFilter(t *testing.T) {
	got := Filter("arabic")
	if len(got) < 5 {
		t.Fatalf("expected several Arabic variants, got %d", len(got))
	}
	for i := 1; i < len(got); i++ {
		if got[i-1].Name > got[i].Name {
			t.Fatalf("results not sorted: %q before %q", got[i-1].Name, got[i].Name)
		}
	}
	if len(Filter("")) != Count() {
		t.Fatal("empty filter should return the full catalog")
	}
}

func TestNativeName(t *testing.T) {
	l, _ := Lookup("fra_Latn")
	if got := l.NativeName(); got != "français" {
		t.Fatalf("NativeName = %q, want français", got)
	}
}

func TestAllReturnsCopy(t *testing.T) {
	all := All()
	all[0].Name = "mutated"
	for _, l := range catalog {
		if l.Name == "mutated" {
			t.Fatal("All must not expose the catalog backing array")
		}
	}
}

func TestIsCJK(t *testing.T) {
	for _, r := range "犬の散歩。한" {
		if !IsCJK(r) {
			t.Errorf("IsCJK(%q) = false", r)
		}
	}
	for _, r := range "dog é,!" {
		if IsCJK(r) {
			t.Errorf("IsCJK(%q) = true", r)
		}
	}
}
