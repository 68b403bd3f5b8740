package i18n

import "testing"

func TestNormalize(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"":      DefaultLanguage,
		"es":    "es",
		"en":    "en",
		"en-US": "en",
		"pt_BR": "pt",
		"fr":    "fr",
		"ar":    "ar",
		"ES":    "es",
	}
	for in, want := range cases {
		if got := Normalize(in); got != want {
			t.Fatalf("Normalize(%q): expected %q, got %q", in, want, got)
		}
	}
}

func TestSupported(t *testing.T) {
	t.Parallel()

	for _, lang := range []string{"es", "en", "pt", "fr", "ar", "en-GB"} {
		if !Supported(lang) {
			t.Fatalf("expected %s to be supported", lang)
		}
	}
	if Supported("de") {
		t.Fatalf("expected de to be unsupported")
	}
}

// Not parallel: Configure mutates package state shared with the other tests.
func TestConfigure(t *testing.T) {
	t.Cleanup(func() { Configure(DefaultLanguage, nil) })

	Configure("en", []string{"en", "pt"})
	if Supported("es") {
		t.Fatalf("es must be disabled after narrowing")
	}
	if !Supported("pt") {
		t.Fatalf("pt must remain supported")
	}
	if Message(KeyUnsupported, "es") != Message(KeyUnsupported, "en") {
		t.Fatalf("disabled language must fall back to the configured default")
	}
	if Normalize("") != "en" {
		t.Fatalf("empty code must resolve to the configured default")
	}

	// Languages without a catalog entry are ignored.
	Configure("de", []string{"en", "de"})
	if Normalize("") != "en" {
		t.Fatalf("unknown default must keep the previous one")
	}
	if Supported("de") {
		t.Fatalf("de has no catalog and must stay unsupported")
	}
}

func TestMessageFallsBackToDefaultLanguage(t *testing.T) {
	t.Parallel()

	if Message(KeyUnsupported, "de") != Message(KeyUnsupported, DefaultLanguage) {
		t.Fatalf("unsupported language must fall back to the default")
	}
}

func TestEveryLanguageCoversEveryKey(t *testing.T) {
	t.Parallel()

	keys := []string{
		KeyTextFailed, KeySpeechFailed, KeyVisionFailed, KeyDownloadFailed,
		KeyEmptyText, KeyEmptyAudio, KeyUnsupported, KeyNoTextInImage,
		KeyLowConfidence, KeyProductNotFound, KeyStart, KeyHelp,
		KeyExactMatchHeader, KeySimilarHeader, KeyAskInterest,
		KeyPriceContact, KeySimilarityLabel,
	}
	for _, lang := range []string{"es", "en", "pt", "fr", "ar"} {
		for _, key := range keys {
			if Message(key, lang) == "" {
				t.Fatalf("language %s is missing key %s", lang, key)
			}
		}
	}
}
