// Package classify assigns an input type to incoming chat platform updates.
// Classification is an ordered chain of attribute checks evaluated top to
// bottom; the first matching check wins, so every message maps to exactly
// one type.
package classify

import (
	"log/slog"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// InputType labels the content variant of an inbound message.
type InputType string

const (
	TypeText      InputType = "text"
	TypeCommand   InputType = "command"
	TypePhoto     InputType = "photo"
	TypeDocument  InputType = "document"
	TypeVideo     InputType = "video"
	TypeAudio     InputType = "audio"
	TypeVoice     InputType = "voice"
	TypeVideoNote InputType = "video_note"
	TypeSticker   InputType = "sticker"
	TypeAnimation InputType = "animation"
	TypeLocation  InputType = "location"
	TypeVenue     InputType = "venue"
	TypeContact   InputType = "contact"
	TypePoll      InputType = "poll"
	TypeDice      InputType = "dice"
	TypeUnknown   InputType = "unknown"
)

// String returns the input type as a plain string.
func (t InputType) String() string {
	return string(t)
}

// IsMedia reports whether the type carries a downloadable attachment.
func (t InputType) IsMedia() bool {
	switch t {
	case TypePhoto, TypeDocument, TypeVideo, TypeAudio, TypeVoice, TypeVideoNote, TypeSticker, TypeAnimation:
		return true
	}
	return false
}

// maxLogContentRunes bounds how much free text reaches the logs.
const maxLogContentRunes = 30

// attributeCheck pairs a presence predicate with the type it implies.
// Order matters: media attachments are more specific than structured
// content, which is more specific than text.
type attributeCheck struct {
	present func(*tgbotapi.Message) bool
	label   InputType
}

var attributeChecks = []attributeCheck{
	{func(m *tgbotapi.Message) bool { return len(m.Photo) > 0 }, TypePhoto},
	{func(m *tgbotapi.Message) bool { return m.Document != nil }, TypeDocument},
	{func(m *tgbotapi.Message) bool { return m.Video != nil }, TypeVideo},
	{func(m *tgbotapi.Message) bool { return m.Audio != nil }, TypeAudio},
	{func(m *tgbotapi.Message) bool { return m.Voice != nil }, TypeVoice},
	{func(m *tgbotapi.Message) bool { return m.VideoNote != nil }, TypeVideoNote},
	{func(m *tgbotapi.Message) bool { return m.Sticker != nil }, TypeSticker},
	{func(m *tgbotapi.Message) bool { return m.Animation != nil }, TypeAnimation},
	{func(m *tgbotapi.Message) bool { return m.Location != nil }, TypeLocation},
	{func(m *tgbotapi.Message) bool { return m.Venue != nil }, TypeVenue},
	{func(m *tgbotapi.Message) bool { return m.Contact != nil }, TypeContact},
	{func(m *tgbotapi.Message) bool { return m.Poll != nil }, TypePoll},
	{func(m *tgbotapi.Message) bool { return m.Dice != nil }, TypeDice},
}

// Classifier maps messages to input types and logs the outcome.
type Classifier struct {
	logger *slog.Logger
}

// NewClassifier creates a Classifier with the given logger.
func NewClassifier(log *slog.Logger) *Classifier {
	if log == nil {
		log = slog.Default()
	}
	return &Classifier{logger: log.With(slog.String("service", "classify"))}
}

// Classify determines the input type of a message and logs it with the
// message content truncated.
func (c *Classifier) Classify(msg *tgbotapi.Message) InputType {
	inputType := classifyMessage(msg)
	if msg != nil && msg.Chat != nil {
		attrs := []any{
			slog.String("type", inputType.String()),
			slog.Int64("chat_id", msg.Chat.ID),
		}
		if inputType == TypeText || inputType == TypeCommand {
			attrs = append(attrs, slog.String("content", Truncate(msg.Text)))
		}
		c.logger.Info("classified input", attrs...)
	}
	return inputType
}

func classifyMessage(msg *tgbotapi.Message) InputType {
	if msg == nil {
		return TypeUnknown
	}
	for _, check := range attributeChecks {
		if check.present(msg) {
			return check.label
		}
	}
	if msg.Text != "" {
		return classifyText(msg.Text)
	}
	// Media with a caption but no recognized attachment field.
	if msg.Caption != "" {
		return TypeText
	}
	return TypeUnknown
}

func classifyText(text string) InputType {
	if strings.HasPrefix(text, "/") {
		return TypeCommand
	}
	return TypeText
}

// Truncate bounds free text for log emission.
func Truncate(content string) string {
	runes := []rune(content)
	if len(runes) <= maxLogContentRunes {
		return content
	}
	return string(runes[:maxLogContentRunes]) + "..."
}
