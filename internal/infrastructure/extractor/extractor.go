// Package extractor turns heterogeneous sources (files, urls) into
// plain-text document records. Every failure is reported inside the
// record so that one bad source never aborts its batch.
package extractor

import (
	"context"
	"fmt"
	"log/slog"
	"mime"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/vmalyshev/studycast/internal/core/domain"
)

const defaultMaxFileSize = 25 << 20 // 25 MiB

// Extensions the platform mime database may not know.
var extensionMimeFallback = map[string]string{
	".txt": "text/plain",
	".md":  "text/markdown",
	".mp3": "audio/mpeg",
	".wav": "audio/wav",
	".mp4": "video/mp4",
	".avi": "video/x-msvideo",
	".jpg": "image/jpeg",
	".png": "image/png",
	".gif": "image/gif",
}

type Extractor struct {
	inference   *inferenceClient
	web         *webClient
	maxFileSize int64
	logger      *slog.Logger
}

type Config struct {
	HFAPIKey        string
	HFBaseURL       string
	MaxFileSize     int64
	RequestsPerMin  int
	TranscribeModel string
	CaptionModel    string
}

func New(cfg Config, logger *slog.Logger) *Extractor {
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = defaultMaxFileSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{
		inference:   newInferenceClient(cfg),
		web:         newWebClient(),
		maxFileSize: cfg.MaxFileSize,
		logger:      logger,
	}
}

func (e *Extractor) Extract(ctx context.Context, source string) domain.DocumentRecord {
	if u, err := url.Parse(source); err == nil && (u.Scheme == "http" || u.Scheme == "https") {
		return e.extractURL(ctx, source)
	}

	info, err := os.Stat(source)
	if err != nil {
		return domain.FailedRecord(source, fmt.Sprintf("file not found: %s", source))
	}
	if info.Size() > e.maxFileSize {
		return domain.FailedRecord(source, fmt.Sprintf("file %s exceeds size limit", source))
	}

	mimeType := guessMimeType(source)
	if mimeType == "" {
		return domain.FailedRecord(source, fmt.Sprintf("unknown file type: %s", source))
	}

	e.logger.Info("extracting_source", "path", source, "mime", mimeType)
	switch {
	case strings.HasPrefix(mimeType, "audio/"):
		return e.extractAudio(ctx, source)
	case strings.HasPrefix(mimeType, "video/"):
		return e.extractVideo(ctx, source)
	case strings.HasPrefix(mimeType, "image/"):
		return e.extractImage(ctx, source)
	default:
		return e.extractDocument(ctx, source, mimeType)
	}
}

func guessMimeType(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if mimeType := mime.TypeByExtension(ext); mimeType != "" {
		return mimeType
	}
	return extensionMimeFallback[ext]
}
