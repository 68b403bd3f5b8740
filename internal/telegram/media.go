package telegram

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// maxMediaBytes caps downloads; the Bot API itself refuses files over 20 MB.
const maxMediaBytes = 20 << 20

// Downloader fetches media bytes for a platform file identifier.
type Downloader struct {
	bot    *tgbotapi.BotAPI
	client *http.Client
	logger *slog.Logger
}

func NewDownloader(log *slog.Logger, bot *tgbotapi.BotAPI) *Downloader {
	if log == nil {
		log = slog.Default()
	}
	return &Downloader{
		bot:    bot,
		client: &http.Client{Timeout: 60 * time.Second},
		logger: log.With(slog.String("service", "media")),
	}
}

// Download resolves the file's storage path and fetches its bytes. The
// returned filename is the storage path's base name, which keeps the original
// extension for MIME inference downstream.
func (d *Downloader) Download(ctx context.Context, fileID string) ([]byte, string, error) {
	file, err := d.bot.GetFile(tgbotapi.FileConfig{FileID: fileID})
	if err != nil {
		return nil, "", fmt.Errorf("resolve file %s: %w", fileID, err)
	}

	url := file.Link(d.bot.Token)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", fmt.Errorf("build download request: %w", err)
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("download file %s: %w", fileID, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, "", fmt.Errorf("download file %s: status %d", fileID, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxMediaBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("read file %s: %w", fileID, err)
	}
	if len(data) > maxMediaBytes {
		return nil, "", fmt.Errorf("file %s exceeds %d bytes", fileID, maxMediaBytes)
	}

	filename := path.Base(file.FilePath)
	if filename == "." || filename == "/" || filename == "" {
		filename = fileID
	}
	d.logger.Debug("media downloaded",
		slog.String("file_id", fileID),
		slog.Int("bytes", len(data)))
	return data, filename, nil
}
