package telegram

import (
	"strings"
	"testing"

	"github.com/telegate/telegate/internal/backend"
	"github.com/telegate/telegate/internal/i18n"
	"github.com/telegate/telegate/internal/router"
)

func TestRenderCarouselExactMatch(t *testing.T) {
	t.Parallel()

	result := router.Result{
		Status:     router.StatusSuccess,
		Reply:      i18n.Message(i18n.KeyExactMatchHeader, "es"),
		ExactMatch: true,
		Products: []backend.Product{
			{SKU: "TECH-001", Name: "Teclado RGB", Brand: "Acme", Price: 59.90, Similarity: 0.95, ImageURL: "https://cdn.example.com/k.jpg"},
		},
	}
	got := renderCarousel(result, "es")

	if !strings.Contains(got, i18n.Message(i18n.KeyExactMatchHeader, "es")) {
		t.Fatalf("missing exact-match header: %s", got)
	}
	if !strings.Contains(got, "Teclado RGB") || !strings.Contains(got, "TECH-001") {
		t.Fatalf("missing product detail: %s", got)
	}
	if !strings.Contains(got, "$59.90") {
		t.Fatalf("missing price: %s", got)
	}
	if strings.Contains(got, i18n.Message(i18n.KeySimilarityLabel, "es")) {
		t.Fatalf("exact match must not show similarity: %s", got)
	}
	if !strings.Contains(got, i18n.Message(i18n.KeyAskInterest, "es")) {
		t.Fatalf("missing footer: %s", got)
	}
}

func TestRenderCarouselSimilarMatches(t *testing.T) {
	t.Parallel()

	result := router.Result{
		Status:        router.StatusSuccess,
		Reply:         "Tenemos opciones <parecidas>",
		LowConfidence: true,
		Products: []backend.Product{
			{SKU: "TECH-003", Name: "Teclado BT", Similarity: 0.52},
		},
	}
	got := renderCarousel(result, "es")

	if !strings.Contains(got, i18n.Message(i18n.KeySimilarHeader, "es")) {
		t.Fatalf("missing similar header: %s", got)
	}
	if !strings.Contains(got, "Tenemos opciones &lt;parecidas&gt;") {
		t.Fatalf("reply text must be HTML-escaped: %s", got)
	}
	if !strings.Contains(got, i18n.Message(i18n.KeySimilarityLabel, "es")+": 52%") {
		t.Fatalf("missing similarity: %s", got)
	}
	// Price missing means the contact label shows instead.
	if !strings.Contains(got, i18n.Message(i18n.KeyPriceContact, "es")) {
		t.Fatalf("missing contact price label: %s", got)
	}
}

func TestTruncateTextRespectsRuneBoundaries(t *testing.T) {
	t.Parallel()

	short := "hola"
	if truncateText(short) != short {
		t.Fatalf("short text must be unchanged")
	}

	long := strings.Repeat("ñ", maxMessageLength)
	got := truncateText(long)
	if len(got) > maxMessageLength {
		t.Fatalf("truncated text exceeds the limit: %d", len(got))
	}
	if !strings.HasSuffix(got, "...") {
		t.Fatalf("truncation marker missing")
	}
	for _, r := range got {
		if r != 'ñ' && r != '.' {
			t.Fatalf("truncation split a rune: %q", r)
		}
	}
}

func TestSanitizeText(t *testing.T) {
	t.Parallel()

	if sanitizeText("hola") != "hola" {
		t.Fatalf("valid text must pass through")
	}
	got := sanitizeText("ok\xffend")
	if got != "okend" {
		t.Fatalf("invalid bytes must be stripped, got %q", got)
	}
}
