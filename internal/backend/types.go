package backend

import "fmt"

// Audience names identify the backend a credential or call is bound to.
const (
	AudienceText   = "text"
	AudienceSpeech = "speech"
	AudienceVision = "vision"
	AudienceSearch = "search"
)

// UserInfo carries sender metadata forwarded to the text backend so it can
// maintain per-user conversation history.
type UserInfo struct {
	Channel      string `json:"channel"`
	ExternalID   string `json:"external_id"`
	FirstName    string `json:"first_name,omitempty"`
	LastName     string `json:"last_name,omitempty"`
	Username     string `json:"username,omitempty"`
	LanguageCode string `json:"language_code,omitempty"`
}

// TextRequest is the text-understanding backend input.
type TextRequest struct {
	Text             string    `json:"text"`
	ConversationID   string    `json:"conversation_id,omitempty"`
	User             *UserInfo `json:"user,omitempty"`
	DetectedLanguage string    `json:"detected_language,omitempty"`
}

// TextResponse is the text-understanding backend output.
type TextResponse struct {
	Response     string `json:"response"`
	Model        string `json:"model,omitempty"`
	InputLength  int    `json:"input_length,omitempty"`
	OutputLength int    `json:"output_length,omitempty"`
}

// SpeechResponse is the transcription backend output.
type SpeechResponse struct {
	Transcription string  `json:"transcription"`
	Confidence    float64 `json:"confidence"`
	Language      string  `json:"language,omitempty"`
}

// ImageClassification is the vision backend's automatic image typing.
type ImageClassification struct {
	Type       string  `json:"type"`
	Confidence float64 `json:"confidence"`
}

// VisionAnalysis is the vision backend output in automatic mode. Fields are
// populated depending on the classified image type: documents carry extracted
// text, objects carry a description and an embedding vector.
type VisionAnalysis struct {
	Classification ImageClassification `json:"classification"`
	ExtractedText  string              `json:"extracted_text,omitempty"`
	Embedding      []float64           `json:"embedding,omitempty"`
	Description    string              `json:"description,omitempty"`
}

// IsDocument reports whether the image was classified as a document.
func (a VisionAnalysis) IsDocument() bool {
	return a.Classification.Type == "document"
}

// SearchRequest is the vector-similarity backend input.
type SearchRequest struct {
	Embedding   []float64 `json:"embedding"`
	Limit       int       `json:"limit"`
	MaxDistance float64   `json:"max_distance"`
}

// Product is one ranked candidate from the vector-similarity backend.
type Product struct {
	SKU         string  `json:"sku"`
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Category    string  `json:"category,omitempty"`
	Brand       string  `json:"brand,omitempty"`
	Price       float64 `json:"price,omitempty"`
	ImageURL    string  `json:"image_url,omitempty"`
	Similarity  float64 `json:"similarity"`
}

// SearchResponse is the vector-similarity backend output.
type SearchResponse struct {
	Found    bool      `json:"found"`
	Count    int       `json:"count"`
	Products []Product `json:"products"`
}

// BestSimilarity returns the highest candidate similarity, or 0 when empty.
func (r SearchResponse) BestSimilarity() float64 {
	best := 0.0
	for _, p := range r.Products {
		if p.Similarity > best {
			best = p.Similarity
		}
	}
	return best
}

// Error is a terminal backend failure. Permanent failures carry the HTTP
// status and any machine-readable code from the response body; exhausted
// retries carry the last observed failure.
type Error struct {
	Audience string
	Status   int
	Code     string
	Message  string
	Err      error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s backend: %v", e.Audience, e.Err)
	}
	if e.Code != "" {
		return fmt.Sprintf("%s backend: status %d (%s)", e.Audience, e.Status, e.Code)
	}
	return fmt.Sprintf("%s backend: status %d", e.Audience, e.Status)
}

func (e *Error) Unwrap() error {
	return e.Err
}
