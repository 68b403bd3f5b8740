package router

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/telegate/telegate/internal/backend"
	"github.com/telegate/telegate/internal/i18n"
)

// routePhoto implements the ordered photo decision:
//  1. document with extracted text goes to the text backend as a
//     document-interpretation request,
//  2. an embedding queries the similarity backend; a high-tier best match
//     short-circuits to the product carousel, medium and low tiers keep the
//     carousel and fall through,
//  3. an object description goes to the text backend as a product query,
//     with any surviving carousel attached.
//
// A surviving carousel without a description does not ship on its own; that
// case is empty content with a localized not-found reply.
func (r *Router) routePhoto(ctx context.Context, msg *tgbotapi.Message, lang string) Result {
	fileID := largestPhoto(msg.Photo)
	if fileID == "" {
		return Result{Status: StatusEmptyContent, Reply: i18n.Message(i18n.KeyNoTextInImage, lang)}
	}

	image, filename, err := r.media.Download(ctx, fileID)
	if err != nil {
		return Result{Status: StatusBackendError, Reply: i18n.Message(i18n.KeyDownloadFailed, lang), Err: err}
	}

	start := time.Now()
	analysis, err := r.backends.Analyze(ctx, image, filename, "image/jpeg")
	r.observe(backend.AudienceVision, start)
	if err != nil {
		return Result{Status: StatusBackendError, Reply: i18n.Message(i18n.KeyVisionFailed, lang), Err: err}
	}

	// Priority 1: document OCR.
	if analysis.IsDocument() && analysis.ExtractedText != "" {
		result := r.routeText(ctx, msg, documentPrompt(analysis.ExtractedText), lang, "")
		r.logger.Info("photo routed",
			slog.String("priority", "document_ocr"),
			slog.Int64("chat_id", msg.Chat.ID))
		return result
	}

	// Priority 2: visual similarity.
	var (
		carousel []backend.Product
		tier     = TierNone
	)
	if len(analysis.Embedding) > 0 {
		found, searchTier := r.searchSimilar(ctx, analysis.Embedding)
		if searchTier == TierHigh {
			r.logger.Info("photo routed",
				slog.String("priority", "exact_match"),
				slog.Int64("chat_id", msg.Chat.ID))
			return Result{
				Status:     StatusSuccess,
				Reply:      i18n.Message(i18n.KeyExactMatchHeader, lang),
				Products:   found,
				ExactMatch: true,
			}
		}
		if searchTier == TierMedium || searchTier == TierLow {
			carousel = found
			tier = searchTier
		}
	}

	// Priority 3: object description as a product query.
	if analysis.Description != "" {
		result := r.routeText(ctx, msg, analysis.Description, lang, "")
		if result.Status == StatusSuccess && len(carousel) > 0 {
			result.Products = carousel
			result.LowConfidence = tier == TierLow
			r.logger.Info("photo routed",
				slog.String("priority", "text_with_similar_products"),
				slog.Int64("chat_id", msg.Chat.ID),
				slog.String("tier", string(tier)))
		}
		return result
	}

	return Result{Status: StatusEmptyContent, Reply: i18n.Message(i18n.KeyProductNotFound, lang)}
}

// searchSimilar queries the similarity backend and tiers the best match.
// A search failure degrades to no candidates; the photo flow continues.
func (r *Router) searchSimilar(ctx context.Context, embedding []float64) ([]backend.Product, Tier) {
	req := backend.SearchRequest{
		Embedding:   embedding,
		Limit:       r.search.Limit,
		MaxDistance: r.search.MaxDistance,
	}
	start := time.Now()
	resp, err := r.backends.SearchByEmbedding(ctx, req)
	r.observe(backend.AudienceSearch, start)
	if err != nil {
		r.logger.Warn("similarity search failed", slog.String("error", err.Error()))
		return nil, TierNone
	}
	if !resp.Found || len(resp.Products) == 0 {
		return nil, TierNone
	}
	tier := TierFor(resp.BestSimilarity(), r.search.HighThreshold, r.search.MediumThreshold, r.search.LowThreshold)
	if tier == TierNone {
		return nil, TierNone
	}
	return resp.Products, tier
}

// documentPrompt frames OCR output for the text backend.
func documentPrompt(extracted string) string {
	return fmt.Sprintf(
		"The user sent a photo of a document. This is the text extracted from it:\n\n%s\n\nInterpret the document and answer the user helpfully in their language.",
		extracted,
	)
}

// largestPhoto picks the biggest rendition the platform offers.
func largestPhoto(sizes []tgbotapi.PhotoSize) string {
	best := ""
	bestArea := -1
	for _, s := range sizes {
		area := s.Width * s.Height
		if area > bestArea {
			bestArea = area
			best = s.FileID
		}
	}
	return best
}
