// Package i18n resolves localized user-facing reply messages.
package i18n

import "strings"

// DefaultLanguage is used when the sender's language is missing or unsupported.
const DefaultLanguage = "es"

// Message keys for localized replies.
const (
	KeyTextFailed      = "text_failed"
	KeySpeechFailed    = "speech_failed"
	KeyVisionFailed    = "vision_failed"
	KeyDownloadFailed  = "download_failed"
	KeyEmptyText       = "empty_text"
	KeyEmptyAudio      = "empty_audio"
	KeyUnsupported     = "unsupported"
	KeyNoTextInImage   = "no_text_in_image"
	KeyLowConfidence   = "low_confidence"
	KeyProductNotFound = "product_not_found"
	KeyStart           = "start"
	KeyHelp            = "help"
)

// Product presentation keys.
const (
	KeyExactMatchHeader = "exact_match_header"
	KeySimilarHeader    = "similar_header"
	KeyAskInterest      = "ask_interest"
	KeyPriceContact     = "price_contact"
	KeySimilarityLabel  = "similarity_label"
)

var messages = map[string]map[string]string{
	"es": {
		KeyTextFailed:       "Lo siento, hubo un error procesando tu mensaje. Por favor intenta de nuevo.",
		KeySpeechFailed:     "No pude transcribir el audio. Por favor intenta de nuevo.",
		KeyVisionFailed:     "No pude procesar la imagen. Por favor intenta de nuevo.",
		KeyDownloadFailed:   "No pude descargar el archivo. Por favor intenta de nuevo.",
		KeyEmptyText:        "No recibí ningún texto para procesar.",
		KeyEmptyAudio:       "No pude obtener el audio del mensaje.",
		KeyUnsupported:      "Este tipo de contenido no está soportado aún. Por favor envía texto o audio.",
		KeyNoTextInImage:    "He recibido tu imagen, pero no encontré texto para procesar.",
		KeyLowConfidence:    "No pude entender claramente el audio. Por favor, habla más despacio y claro, o reduce el ruido de fondo.",
		KeyProductNotFound:  "No encontré productos similares a tu imagen en nuestro catálogo. ¿Puedo ayudarte con algo más?",
		KeyExactMatchHeader: "✅ <b>¡Encontré productos que coinciden con tu imagen!</b>",
		KeySimilarHeader:    "🔍 <b>No tenemos exactamente ese producto, pero encontré opciones similares:</b>",
		KeyAskInterest:      "¿Te interesa alguno de estos productos?",
		KeyPriceContact:     "Consultar",
		KeySimilarityLabel:  "Similitud",
		KeyStart:            "<b>¡Bienvenido!</b> 👋\n\nPuedo procesar texto, fotos, audio y más.\n\nUsa /help para ver los comandos disponibles.",
		KeyHelp:             "<b>Comandos disponibles:</b>\n\n/start - Iniciar el bot\n/help - Mostrar esta ayuda\n\nEnvía texto, una foto o un mensaje de voz y te responderé.",
	},
	"en": {
		KeyTextFailed:       "Sorry, there was an error processing your message. Please try again.",
		KeySpeechFailed:     "I couldn't transcribe the audio. Please try again.",
		KeyVisionFailed:     "I couldn't process the image. Please try again.",
		KeyDownloadFailed:   "I couldn't download the file. Please try again.",
		KeyEmptyText:        "I didn't receive any text to process.",
		KeyEmptyAudio:       "I couldn't get the audio from the message.",
		KeyUnsupported:      "This content type is not supported yet. Please send text or audio.",
		KeyNoTextInImage:    "I received your image, but I couldn't find any text to process.",
		KeyLowConfidence:    "I couldn't clearly understand the audio. Please speak more slowly and clearly, or reduce background noise.",
		KeyProductNotFound:  "I couldn't find similar products in our catalog. Can I help you with something else?",
		KeyExactMatchHeader: "✅ <b>I found products that match your image!</b>",
		KeySimilarHeader:    "🔍 <b>We don't have that exact product, but I found similar options:</b>",
		KeyAskInterest:      "Are you interested in any of these products?",
		KeyPriceContact:     "Contact us",
		KeySimilarityLabel:  "Similarity",
		KeyStart:            "<b>Welcome!</b> 👋\n\nI can process text, photos, audio and more.\n\nUse /help to see available commands.",
		KeyHelp:             "<b>Available commands:</b>\n\n/start - Start the bot\n/help - Show this help\n\nSend text, a photo or a voice message and I'll reply.",
	},
	"pt": {
		KeyTextFailed:       "Desculpe, houve um erro ao processar sua mensagem. Por favor, tente novamente.",
		KeySpeechFailed:     "Não consegui transcrever o áudio. Por favor, tente novamente.",
		KeyVisionFailed:     "Não consegui processar a imagem. Por favor, tente novamente.",
		KeyDownloadFailed:   "Não consegui baixar o arquivo. Por favor, tente novamente.",
		KeyEmptyText:        "Não recebi nenhum texto para processar.",
		KeyEmptyAudio:       "Não consegui obter o áudio da mensagem.",
		KeyUnsupported:      "Este tipo de conteúdo ainda não é suportado. Por favor, envie texto ou áudio.",
		KeyNoTextInImage:    "Recebi sua imagem, mas não encontrei texto para processar.",
		KeyLowConfidence:    "Não consegui entender claramente o áudio. Por favor, fale mais devagar e claramente, ou reduza o ruído de fundo.",
		KeyProductNotFound:  "Não encontrei produtos semelhantes à sua imagem em nosso catálogo. Posso ajudá-lo com algo mais?",
		KeyExactMatchHeader: "✅ <b>Encontrei produtos que correspondem à sua imagem!</b>",
		KeySimilarHeader:    "🔍 <b>Não temos exatamente esse produto, mas encontrei opções similares:</b>",
		KeyAskInterest:      "Você tem interesse em algum desses produtos?",
		KeyPriceContact:     "Consultar",
		KeySimilarityLabel:  "Similaridade",
		KeyStart:            "<b>Bem-vindo!</b> 👋\n\nPosso processar texto, fotos, áudio e mais.\n\nUse /help para ver os comandos disponíveis.",
		KeyHelp:             "<b>Comandos disponíveis:</b>\n\n/start - Iniciar o bot\n/help - Mostrar esta ajuda\n\nEnvie texto, uma foto ou uma mensagem de voz e eu respondo.",
	},
	"fr": {
		KeyTextFailed:       "Désolé, une erreur s'est produite lors du traitement de votre message. Veuillez réessayer.",
		KeySpeechFailed:     "Je n'ai pas pu transcrire l'audio. Veuillez réessayer.",
		KeyVisionFailed:     "Je n'ai pas pu traiter l'image. Veuillez réessayer.",
		KeyDownloadFailed:   "Je n'ai pas pu télécharger le fichier. Veuillez réessayer.",
		KeyEmptyText:        "Je n'ai reçu aucun texte à traiter.",
		KeyEmptyAudio:       "Je n'ai pas pu obtenir l'audio du message.",
		KeyUnsupported:      "Ce type de contenu n'est pas encore pris en charge. Veuillez envoyer du texte ou de l'audio.",
		KeyNoTextInImage:    "J'ai reçu votre image, mais je n'ai trouvé aucun texte à traiter.",
		KeyLowConfidence:    "Je n'ai pas pu comprendre clairement l'audio. Veuillez parler plus lentement et clairement, ou réduire le bruit de fond.",
		KeyProductNotFound:  "Je n'ai pas trouvé de produits similaires à votre image dans notre catalogue. Puis-je vous aider avec autre chose?",
		KeyExactMatchHeader: "✅ <b>J'ai trouvé des produits qui correspondent à votre image!</b>",
		KeySimilarHeader:    "🔍 <b>Nous n'avons pas exactement ce produit, mais j'ai trouvé des options similaires:</b>",
		KeyAskInterest:      "L'un de ces produits vous intéresse-t-il?",
		KeyPriceContact:     "Nous contacter",
		KeySimilarityLabel:  "Similarité",
		KeyStart:            "<b>Bienvenue!</b> 👋\n\nJe peux traiter du texte, des photos, de l'audio et plus.\n\nUtilisez /help pour voir les commandes disponibles.",
		KeyHelp:             "<b>Commandes disponibles:</b>\n\n/start - Démarrer le bot\n/help - Afficher cette aide\n\nEnvoyez du texte, une photo ou un message vocal et je répondrai.",
	},
	"ar": {
		KeyTextFailed:       "عذراً، حدث خطأ أثناء معالجة رسالتك. يرجى المحاولة مرة أخرى.",
		KeySpeechFailed:     "لم أتمكن من تحويل الصوت إلى نص. يرجى المحاولة مرة أخرى.",
		KeyVisionFailed:     "لم أتمكن من معالجة الصورة. يرجى المحاولة مرة أخرى.",
		KeyDownloadFailed:   "لم أتمكن من تحميل الملف. يرجى المحاولة مرة أخرى.",
		KeyEmptyText:        "لم أستلم أي نص للمعالجة.",
		KeyEmptyAudio:       "لم أتمكن من الحصول على الصوت من الرسالة.",
		KeyUnsupported:      "هذا النوع من المحتوى غير مدعوم حالياً. يرجى إرسال نص أو صوت.",
		KeyNoTextInImage:    "استلمت صورتك، لكن لم أجد أي نص للمعالجة.",
		KeyLowConfidence:    "لم أتمكن من فهم الصوت بوضوح. يرجى التحدث ببطء ووضوح أكثر، أو تقليل الضوضاء المحيطة.",
		KeyProductNotFound:  "لم أجد منتجات مشابهة لصورتك في كتالوجنا. هل يمكنني مساعدتك بشيء آخر؟",
		KeyExactMatchHeader: "✅ <b>وجدت منتجات تطابق صورتك!</b>",
		KeySimilarHeader:    "🔍 <b>ليس لدينا هذا المنتج بالضبط، لكن وجدت خيارات مشابهة:</b>",
		KeyAskInterest:      "هل أنت مهتم بأي من هذه المنتجات؟",
		KeyPriceContact:     "اتصل بنا",
		KeySimilarityLabel:  "التشابه",
		KeyStart:            "<b>مرحباً!</b> 👋\n\nيمكنني معالجة النصوص والصور والصوت والمزيد.\n\nاستخدم /help لعرض الأوامر المتاحة.",
		KeyHelp:             "<b>الأوامر المتاحة:</b>\n\n/start - بدء البوت\n/help - عرض هذه المساعدة\n\nأرسل نصاً أو صورة أو رسالة صوتية وسأرد عليك.",
	},
}

var (
	defaultLanguage = DefaultLanguage
	// enabled narrows the served languages; nil means every catalog language.
	enabled map[string]bool
)

// Configure overrides the default language and narrows the served languages.
// Languages without a catalog entry are ignored; an unknown default keeps the
// built-in one. Call once at startup, before serving traffic.
func Configure(defaultLang string, languages []string) {
	if _, ok := messages[Normalize(defaultLang)]; ok {
		defaultLanguage = Normalize(defaultLang)
	}
	if len(languages) == 0 {
		enabled = nil
		return
	}
	set := make(map[string]bool, len(languages))
	for _, lang := range languages {
		if _, ok := messages[Normalize(lang)]; ok {
			set[Normalize(lang)] = true
		}
	}
	enabled = set
}

// Normalize reduces a language code to its ISO 639-1 base form
// ("en-US" -> "en"). Empty input yields the default language.
func Normalize(languageCode string) string {
	code := strings.ToLower(strings.TrimSpace(languageCode))
	if code == "" {
		return defaultLanguage
	}
	if idx := strings.IndexAny(code, "-_"); idx > 0 {
		code = code[:idx]
	}
	return code
}

// Message returns the localized message for key in the given language,
// falling back to the default language, then to the key itself.
func Message(key, languageCode string) string {
	lang := Normalize(languageCode)
	if enabled == nil || enabled[lang] {
		if msg, ok := messages[lang][key]; ok {
			return msg
		}
	}
	if msg, ok := messages[defaultLanguage][key]; ok {
		return msg
	}
	return key
}

// Supported reports whether the language (after normalization) is served.
func Supported(languageCode string) bool {
	lang := Normalize(languageCode)
	if enabled != nil && !enabled[lang] {
		return false
	}
	_, ok := messages[lang]
	return ok
}
