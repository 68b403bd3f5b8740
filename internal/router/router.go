// Package router decides, per classified update, which backends to call and
// how to assemble the reply.
package router

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/telegate/telegate/internal/backend"
	"github.com/telegate/telegate/internal/classify"
	"github.com/telegate/telegate/internal/config"
	"github.com/telegate/telegate/internal/i18n"
	"github.com/telegate/telegate/internal/metrics"
)

// Backends is the slice of the resilient client the router needs.
type Backends interface {
	ProcessText(ctx context.Context, req backend.TextRequest) (backend.TextResponse, error)
	Transcribe(ctx context.Context, audio []byte, filename string) (backend.SpeechResponse, error)
	Analyze(ctx context.Context, image []byte, filename, mimeType string) (backend.VisionAnalysis, error)
	SearchByEmbedding(ctx context.Context, req backend.SearchRequest) (backend.SearchResponse, error)
}

// MediaFetcher downloads a platform file by its identifier.
type MediaFetcher interface {
	Download(ctx context.Context, fileID string) (data []byte, filename string, err error)
}

// Sender delivers an assembled result back to the chat.
type Sender interface {
	Deliver(ctx context.Context, chatID int64, lang string, result Result) error
}

// Router routes classified updates to backends and hands the assembled
// result to the delivery sender.
type Router struct {
	classifier *classify.Classifier
	backends   Backends
	media      MediaFetcher
	sender     Sender
	search     config.SearchConfig
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

func New(
	log *slog.Logger,
	m *metrics.Metrics,
	classifier *classify.Classifier,
	backends Backends,
	media MediaFetcher,
	sender Sender,
	search config.SearchConfig,
) *Router {
	if log == nil {
		log = slog.Default()
	}
	return &Router{
		classifier: classifier,
		backends:   backends,
		media:      media,
		sender:     sender,
		search:     search,
		metrics:    m,
		logger:     log.With(slog.String("service", "router")),
	}
}

// Process handles one update end to end. It never returns an error: every
// failure is converted into a localized reply or, at worst, a logged dropped
// delivery.
func (r *Router) Process(ctx context.Context, update *tgbotapi.Update) {
	msg := update.Message
	if msg == nil {
		msg = update.EditedMessage
	}
	if msg == nil || msg.Chat == nil {
		r.logger.Debug("update without message, ignored", slog.Int("update_id", update.UpdateID))
		return
	}

	inputType := r.classifier.Classify(msg)
	lang := i18n.Normalize(senderLanguage(msg))

	result := r.route(ctx, msg, inputType, lang)
	if r.metrics != nil {
		r.metrics.ProcessingTotal.WithLabelValues(string(inputType), string(result.Status)).Inc()
	}
	if result.Err != nil {
		r.logger.Error("processing failed",
			slog.String("input_type", string(inputType)),
			slog.Int64("chat_id", msg.Chat.ID),
			slog.String("error", result.Err.Error()))
	}

	if !result.Deliverable() {
		return
	}
	if err := r.sender.Deliver(ctx, msg.Chat.ID, lang, result); err != nil {
		r.logger.Error("delivery failed",
			slog.Int64("chat_id", msg.Chat.ID),
			slog.String("error", err.Error()))
	}
}

func (r *Router) route(ctx context.Context, msg *tgbotapi.Message, inputType classify.InputType, lang string) Result {
	switch inputType {
	case classify.TypeText:
		return r.routeText(ctx, msg, msg.Text, lang, "")
	case classify.TypeCommand:
		return r.routeCommand(ctx, msg, lang)
	case classify.TypeVoice:
		return r.routeSpeech(ctx, msg, msg.Voice.FileID, lang)
	case classify.TypeAudio:
		return r.routeSpeech(ctx, msg, msg.Audio.FileID, lang)
	case classify.TypePhoto:
		return r.routePhoto(ctx, msg, lang)
	default:
		return Result{Status: StatusUnsupported, Reply: i18n.Message(i18n.KeyUnsupported, lang)}
	}
}

// routeText sends free text to the text-understanding backend. The chat's
// stable identifier becomes the conversation identifier so the backend keeps
// its own history per chat.
func (r *Router) routeText(ctx context.Context, msg *tgbotapi.Message, text, lang, detectedLang string) Result {
	if strings.TrimSpace(text) == "" {
		return Result{Status: StatusEmptyContent, Reply: i18n.Message(i18n.KeyEmptyText, lang)}
	}

	resp, err := r.callText(ctx, msg, text, detectedLang)
	if err != nil {
		return Result{Status: StatusBackendError, Reply: i18n.Message(i18n.KeyTextFailed, lang), Err: err}
	}
	if resp.Response == "" {
		return Result{Status: StatusEmptyContent}
	}
	return Result{Status: StatusSuccess, Reply: resp.Response}
}

// routeCommand answers /start and /help from local templates; anything else
// goes to the text backend like plain text.
func (r *Router) routeCommand(ctx context.Context, msg *tgbotapi.Message, lang string) Result {
	switch msg.Command() {
	case "start":
		return Result{Status: StatusSuccess, Reply: i18n.Message(i18n.KeyStart, lang)}
	case "help":
		return Result{Status: StatusSuccess, Reply: i18n.Message(i18n.KeyHelp, lang)}
	default:
		return r.routeText(ctx, msg, msg.Text, lang, "")
	}
}

// routeSpeech downloads the audio, transcribes it, then forwards the
// transcription to the text backend. The transcriber's detected language
// takes precedence over the sender's declared one.
func (r *Router) routeSpeech(ctx context.Context, msg *tgbotapi.Message, fileID, lang string) Result {
	audio, filename, err := r.media.Download(ctx, fileID)
	if err != nil {
		return Result{Status: StatusBackendError, Reply: i18n.Message(i18n.KeyDownloadFailed, lang), Err: err}
	}
	if len(audio) == 0 {
		return Result{Status: StatusEmptyContent, Reply: i18n.Message(i18n.KeyEmptyAudio, lang)}
	}

	start := time.Now()
	speech, err := r.backends.Transcribe(ctx, audio, filename)
	r.observe(backend.AudienceSpeech, start)
	if err != nil {
		if errors.Is(err, backend.ErrLowConfidence) {
			return Result{Status: StatusSuccess, Reply: i18n.Message(i18n.KeyLowConfidence, lang)}
		}
		return Result{Status: StatusBackendError, Reply: i18n.Message(i18n.KeySpeechFailed, lang), Err: err}
	}
	if strings.TrimSpace(speech.Transcription) == "" {
		return Result{Status: StatusEmptyContent, Reply: i18n.Message(i18n.KeyEmptyAudio, lang)}
	}
	return r.routeText(ctx, msg, speech.Transcription, lang, speech.Language)
}

func (r *Router) callText(ctx context.Context, msg *tgbotapi.Message, text, detectedLang string) (backend.TextResponse, error) {
	req := backend.TextRequest{
		Text:             text,
		ConversationID:   strconv.FormatInt(msg.Chat.ID, 10),
		User:             userInfo(msg),
		DetectedLanguage: detectedLang,
	}
	start := time.Now()
	resp, err := r.backends.ProcessText(ctx, req)
	r.observe(backend.AudienceText, start)
	return resp, err
}

func (r *Router) observe(audience string, start time.Time) {
	if r.metrics != nil {
		r.metrics.BackendCallDuration.WithLabelValues(audience).Observe(time.Since(start).Seconds())
	}
}

func senderLanguage(msg *tgbotapi.Message) string {
	if msg.From == nil {
		return ""
	}
	return msg.From.LanguageCode
}

func userInfo(msg *tgbotapi.Message) *backend.UserInfo {
	if msg.From == nil {
		return nil
	}
	return &backend.UserInfo{
		Channel:      "telegram",
		ExternalID:   strconv.FormatInt(msg.From.ID, 10),
		FirstName:    msg.From.FirstName,
		LastName:     msg.From.LastName,
		Username:     msg.From.UserName,
		LanguageCode: msg.From.LanguageCode,
	}
}
