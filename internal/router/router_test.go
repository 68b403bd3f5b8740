package router

import (
	"context"
	"errors"
	"strings"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/telegate/telegate/internal/backend"
	"github.com/telegate/telegate/internal/classify"
	"github.com/telegate/telegate/internal/config"
	"github.com/telegate/telegate/internal/i18n"
)

type fakeBackends struct {
	textCalls   []backend.TextRequest
	textResp    backend.TextResponse
	textErr     error
	speechResp  backend.SpeechResponse
	speechErr   error
	visionResp  backend.VisionAnalysis
	visionErr   error
	searchCalls []backend.SearchRequest
	searchResp  backend.SearchResponse
	searchErr   error
}

func (f *fakeBackends) ProcessText(_ context.Context, req backend.TextRequest) (backend.TextResponse, error) {
	f.textCalls = append(f.textCalls, req)
	return f.textResp, f.textErr
}

func (f *fakeBackends) Transcribe(context.Context, []byte, string) (backend.SpeechResponse, error) {
	return f.speechResp, f.speechErr
}

func (f *fakeBackends) Analyze(context.Context, []byte, string, string) (backend.VisionAnalysis, error) {
	return f.visionResp, f.visionErr
}

func (f *fakeBackends) SearchByEmbedding(_ context.Context, req backend.SearchRequest) (backend.SearchResponse, error) {
	f.searchCalls = append(f.searchCalls, req)
	return f.searchResp, f.searchErr
}

type fakeMedia struct {
	data []byte
	name string
	err  error
}

func (f *fakeMedia) Download(context.Context, string) ([]byte, string, error) {
	return f.data, f.name, f.err
}

type fakeSender struct {
	chatIDs []int64
	langs   []string
	results []Result
	err     error
}

func (f *fakeSender) Deliver(_ context.Context, chatID int64, lang string, result Result) error {
	f.chatIDs = append(f.chatIDs, chatID)
	f.langs = append(f.langs, lang)
	f.results = append(f.results, result)
	return f.err
}

var testSearchCfg = config.SearchConfig{
	Limit:           5,
	MaxDistance:     0.5,
	HighThreshold:   0.75,
	MediumThreshold: 0.60,
	LowThreshold:    0.45,
}

func newTestRouter(backends *fakeBackends, media *fakeMedia, sender *fakeSender) *Router {
	return New(nil, nil, classify.NewClassifier(nil), backends, media, sender, testSearchCfg)
}

func textUpdate(chatID int64, text string) *tgbotapi.Update {
	return &tgbotapi.Update{
		UpdateID: 1,
		Message: &tgbotapi.Message{
			MessageID: 10,
			Chat:      &tgbotapi.Chat{ID: chatID},
			From:      &tgbotapi.User{ID: 42, FirstName: "Ana", LanguageCode: "es"},
			Text:      text,
		},
	}
}

func TestProcessTextUsesChatAsConversation(t *testing.T) {
	t.Parallel()

	backends := &fakeBackends{textResp: backend.TextResponse{Response: "¡hola!"}}
	sender := &fakeSender{}
	r := newTestRouter(backends, &fakeMedia{}, sender)

	r.Process(context.Background(), textUpdate(123, "hello"))

	if len(backends.textCalls) != 1 {
		t.Fatalf("expected 1 text call, got %d", len(backends.textCalls))
	}
	call := backends.textCalls[0]
	if call.Text != "hello" || call.ConversationID != "123" {
		t.Fatalf("unexpected request: %+v", call)
	}
	if call.User == nil || call.User.ExternalID != "42" || call.User.Channel != "telegram" {
		t.Fatalf("unexpected user info: %+v", call.User)
	}
	if len(sender.results) != 1 || sender.results[0].Reply != "¡hola!" {
		t.Fatalf("unexpected delivery: %+v", sender.results)
	}
	if sender.chatIDs[0] != 123 {
		t.Fatalf("unexpected chat id %d", sender.chatIDs[0])
	}
	if sender.results[0].Status != StatusSuccess {
		t.Fatalf("unexpected status %s", sender.results[0].Status)
	}
}

func TestProcessTextBackendFailure(t *testing.T) {
	t.Parallel()

	backends := &fakeBackends{textErr: errors.New("boom")}
	sender := &fakeSender{}
	r := newTestRouter(backends, &fakeMedia{}, sender)

	r.Process(context.Background(), textUpdate(5, "hello"))

	if len(sender.results) != 1 {
		t.Fatalf("expected error reply, got %d deliveries", len(sender.results))
	}
	got := sender.results[0]
	if got.Status != StatusBackendError {
		t.Fatalf("unexpected status %s", got.Status)
	}
	if got.Reply != i18n.Message(i18n.KeyTextFailed, "es") {
		t.Fatalf("unexpected reply %q", got.Reply)
	}
}

func TestProcessStartCommandAnsweredLocally(t *testing.T) {
	t.Parallel()

	backends := &fakeBackends{}
	sender := &fakeSender{}
	r := newTestRouter(backends, &fakeMedia{}, sender)

	r.Process(context.Background(), textUpdate(1, "/start"))

	if len(backends.textCalls) != 0 {
		t.Fatalf("commands must not reach the text backend")
	}
	if len(sender.results) != 1 || sender.results[0].Reply != i18n.Message(i18n.KeyStart, "es") {
		t.Fatalf("unexpected delivery: %+v", sender.results)
	}
}

func TestProcessUnknownCommandForwarded(t *testing.T) {
	t.Parallel()

	backends := &fakeBackends{textResp: backend.TextResponse{Response: "done"}}
	sender := &fakeSender{}
	r := newTestRouter(backends, &fakeMedia{}, sender)

	r.Process(context.Background(), textUpdate(1, "/buscar teclado"))

	if len(backends.textCalls) != 1 || backends.textCalls[0].Text != "/buscar teclado" {
		t.Fatalf("unexpected text calls: %+v", backends.textCalls)
	}
}

func voiceUpdate(chatID int64) *tgbotapi.Update {
	return &tgbotapi.Update{
		UpdateID: 2,
		Message: &tgbotapi.Message{
			MessageID: 11,
			Chat:      &tgbotapi.Chat{ID: chatID},
			From:      &tgbotapi.User{ID: 42, LanguageCode: "es"},
			Voice:     &tgbotapi.Voice{FileID: "voice-1"},
		},
	}
}

func TestProcessVoiceForwardsDetectedLanguage(t *testing.T) {
	t.Parallel()

	backends := &fakeBackends{
		speechResp: backend.SpeechResponse{Transcription: "hello there", Confidence: 0.92, Language: "en"},
		textResp:   backend.TextResponse{Response: "hi"},
	}
	sender := &fakeSender{}
	r := newTestRouter(backends, &fakeMedia{data: []byte("ogg"), name: "voice.oga"}, sender)

	r.Process(context.Background(), voiceUpdate(9))

	if len(backends.textCalls) != 1 {
		t.Fatalf("expected transcription forwarded to text backend")
	}
	call := backends.textCalls[0]
	if call.Text != "hello there" || call.DetectedLanguage != "en" {
		t.Fatalf("unexpected request: %+v", call)
	}
}

func TestProcessVoiceLowConfidenceShortCircuits(t *testing.T) {
	t.Parallel()

	backends := &fakeBackends{
		speechErr: &backend.Error{Audience: backend.AudienceSpeech, Status: 422, Code: "low_confidence", Err: backend.ErrLowConfidence},
	}
	sender := &fakeSender{}
	r := newTestRouter(backends, &fakeMedia{data: []byte("ogg"), name: "voice.oga"}, sender)

	r.Process(context.Background(), voiceUpdate(9))

	if len(backends.textCalls) != 0 {
		t.Fatalf("low confidence must not reach the text backend")
	}
	if len(sender.results) != 1 || sender.results[0].Reply != i18n.Message(i18n.KeyLowConfidence, "es") {
		t.Fatalf("unexpected delivery: %+v", sender.results)
	}
	if sender.results[0].Status != StatusSuccess {
		t.Fatalf("low confidence reply is a handled outcome, got %s", sender.results[0].Status)
	}
}

func TestProcessVoiceDownloadFailure(t *testing.T) {
	t.Parallel()

	backends := &fakeBackends{}
	sender := &fakeSender{}
	r := newTestRouter(backends, &fakeMedia{err: errors.New("file gone")}, sender)

	r.Process(context.Background(), voiceUpdate(9))

	if len(sender.results) != 1 || sender.results[0].Reply != i18n.Message(i18n.KeyDownloadFailed, "es") {
		t.Fatalf("unexpected delivery: %+v", sender.results)
	}
}

func TestProcessUnsupportedType(t *testing.T) {
	t.Parallel()

	backends := &fakeBackends{}
	sender := &fakeSender{}
	r := newTestRouter(backends, &fakeMedia{}, sender)

	r.Process(context.Background(), &tgbotapi.Update{
		UpdateID: 3,
		Message: &tgbotapi.Message{
			Chat:    &tgbotapi.Chat{ID: 7},
			From:    &tgbotapi.User{ID: 1, LanguageCode: "en"},
			Sticker: &tgbotapi.Sticker{FileID: "st"},
		},
	})

	if len(backends.textCalls) != 0 || len(backends.searchCalls) != 0 {
		t.Fatalf("unsupported types must not call backends")
	}
	if len(sender.results) != 1 {
		t.Fatalf("expected a localized unsupported reply")
	}
	got := sender.results[0]
	if got.Status != StatusUnsupported {
		t.Fatalf("unexpected status %s", got.Status)
	}
	if got.Reply != i18n.Message(i18n.KeyUnsupported, "en") {
		t.Fatalf("unexpected reply %q", got.Reply)
	}
}

func TestProcessIgnoresMessagelessUpdate(t *testing.T) {
	t.Parallel()

	sender := &fakeSender{}
	r := newTestRouter(&fakeBackends{}, &fakeMedia{}, sender)

	r.Process(context.Background(), &tgbotapi.Update{UpdateID: 4})

	if len(sender.results) != 0 {
		t.Fatalf("updates without a message must be dropped silently")
	}
}

func TestProcessLanguageFallback(t *testing.T) {
	t.Parallel()

	backends := &fakeBackends{textErr: errors.New("down")}
	sender := &fakeSender{}
	r := newTestRouter(backends, &fakeMedia{}, sender)

	update := textUpdate(1, "hi")
	update.Message.From.LanguageCode = "de" // unsupported

	r.Process(context.Background(), update)

	if !strings.Contains(sender.results[0].Reply, "error procesando") {
		t.Fatalf("expected default-language reply, got %q", sender.results[0].Reply)
	}
}

func TestTierFor(t *testing.T) {
	t.Parallel()

	cases := map[float64]Tier{
		0.95: TierHigh,
		0.75: TierHigh,
		0.70: TierMedium,
		0.60: TierMedium,
		0.50: TierLow,
		0.45: TierLow,
		0.30: TierNone,
		0:    TierNone,
	}
	for score, want := range cases {
		if got := TierFor(score, 0.75, 0.60, 0.45); got != want {
			t.Fatalf("score %.2f: expected %s, got %s", score, want, got)
		}
	}
}
