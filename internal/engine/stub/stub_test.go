package stub

import (
	"context"
	"errors"
	"strings"
	"testing"

	"babel/internal/engine"
	"babel/internal/services"
)

func newTestEngine() *Engine {
	return New(Options{Artifacts: []string{"config.json", "model.bin"}, ChunkCount: 4})
}

func TestLoadReportsEveryArtifact(t *testing.T) {
	e := newTestEngine()
	var records []engine.Progress
	h, err := e.Load(context.Background(), "demo/model", func(p engine.Progress) {
		records = append(records, p)
	})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if h.Model() != "demo/model" {
		t.Fatalf("Model = %q", h.Model())
	}

	starts := map[string]int{}
	ends := map[string]int{}
	last := map[string]float64{}
	for _, rec := range records {
		switch rec.Phase {
		case engine.PhaseStart:
			starts[rec.File]++
			if rec.Name != "demo/model" {
				t.Fatalf("start record missing model name: %+v", rec)
			}
		case engine.PhaseProgress:
			if ends[rec.File] > 0 {
				t.Fatalf("progress after end for %s", rec.File)
			}
			if rec.Progress < last[rec.File] {
				t.Fatalf("progress regressed for %s: %v < %v", rec.File, rec.Progress, last[rec.File])
			}
			last[rec.File] = rec.Progress
		case engine.PhaseEnd:
			ends[rec.File]++
		}
	}
	for _, file := range []string{"config.json", "model.bin"} {
		if starts[file] != 1 || ends[file] != 1 {
			t.Fatalf("%s: starts=%d ends=%d", file, starts[file], ends[file])
		}
		if last[file] != 100 {
			t.Fatalf("%s: final progress %v", file, last[file])
		}
	}
	if records[0].Phase != engine.PhaseStart || records[1].Phase != engine.PhaseStart {
		t.Fatalf("expected start records first, got %+v", records[:2])
	}
	if e.LoadCount() != 1 {
		t.Fatalf("LoadCount = %d", e.LoadCount())
	}
}

func TestLoadFailureInjection(t *testing.T) {
	e := newTestEngine()
	e.FailNextLoads(1)
	if _, err := e.Load(context.Background(), "demo", nil); !errors.Is(err, services.ErrLoadFailure) {
		t.Fatalf("expected load failure, got %v", err)
	}
	if _, err := e.Load(context.Background(), "demo", nil); err != nil {
		t.Fatalf("second load should succeed: %v", err)
	}
}

func TestLoadRequiresModel(t *testing.T) {
	if _, err := newTestEngine().Load(context.Background(), " ", nil); !errors.Is(err, services.ErrLoadFailure) {
		t.Fatalf("expected load failure, got %v", err)
	}
}

func TestLoadHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := newTestEngine().Load(ctx, "demo", nil); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestGenerateStreamsPieces(t *testing.T) {
	h, err := newTestEngine().Load(context.Background(), "demo", nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	var pieces []string
	out, err := h.Generate(context.Background(), "I love walking my dog.", "eng_Latn", "fra_Latn", func(p string) {
		pieces = append(pieces, p)
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if out != "J'adore promener mon chien." {
		t.Fatalf("unexpected output %q", out)
	}
	if len(pieces) < 2 {
		t.Fatalf("expected several pieces, got %q", pieces)
	}
	if strings.Join(pieces, "") != out {
		t.Fatalf("pieces %q do not concatenate to %q", pieces, out)
	}
}

func TestGenerateRejectsUnsupportedLanguage(t *testing.T) {
	h, _ := newTestEngine().Load(context.Background(), "demo", nil)
	_, err := h.Generate(context.Background(), "hi", "eng_Latn", "xx_Latn", nil)
	if !errors.Is(err, services.ErrUnsupportedLanguage) {
		t.Fatalf("expected unsupported language, got %v", err)
	}
	if services.Kind(err) != services.KindUnsupportedLanguage {
		t.Fatalf("Kind = %q", services.Kind(err))
	}
}

func TestTranslate(t *testing.T) {
	tests := []struct {
		text, src, tgt, want string
	}{
		{"I love walking my dog.", "eng_Latn", "fra_Latn", "J'adore promener mon chien."},
		{"  i love   walking my dog. ", "eng_Latn", "spa_Latn", "Me encanta pasear a mi perro."},
		{"Hallo, Welt!", "deu_Latn", "eng_Latn", "Hello, world!"},
		{"same", "eng_Latn", "eng_Latn", "same"},
		{"unknown text", "eng_Latn", "fra_Latn", "[fra_Latn] unknown text"},
	}
	for _, tt := range tests {
		if got := Translate(tt.text, tt.src, tt.tgt); got != tt.want {
			t.Errorf("Translate(%q, %s, %s) = %q, want %q", tt.text, tt.src, tt.tgt, got, tt.want)
		}
	}
}

func TestPieces(t *testing.T) {
	got := Pieces("我喜欢 dogs")
	want := []string{"我", "喜", "欢", " dog", "s"}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Fatalf("Pieces = %q, want %q", got, want)
	}
}
