// Package media materializes message attachments into durable object
// storage. Any failure yields an empty URI list; media problems never abort
// message processing.
package media

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gadicohen93/Veriver/internal/domain"
	"github.com/gadicohen93/Veriver/internal/logger"
	"github.com/gadicohen93/Veriver/internal/metrics"
)

// Downloader fetches an attachment to a local path. The channel client
// satisfies this.
type Downloader interface {
	DownloadMedia(ctx context.Context, msg domain.RawMessage, dest string) (string, error)
}

// Handler downloads attachments to a local staging directory and uploads
// them to durable object storage.
type Handler struct {
	downloader Downloader
	store      ObjectStore
	stagingDir string
	logger     logger.Logger
}

// NewHandler creates a media handler, ensuring the staging directory exists.
func NewHandler(downloader Downloader, store ObjectStore, stagingDir string, log logger.Logger) (*Handler, error) {
	if err := os.MkdirAll(stagingDir, 0o755); err != nil {
		return nil, fmt.Errorf("create staging dir %s: %w", stagingDir, err)
	}
	return &Handler{
		downloader: downloader,
		store:      store,
		stagingDir: stagingDir,
		logger:     log,
	}, nil
}

// FetchAndStore materializes the message's attachment and returns stable
// reference URIs, empty on no media or any failure. The staging file is
// removed on every exit path after a successful download, including upload
// failure.
func (h *Handler) FetchAndStore(ctx context.Context, channelID int64, msg domain.RawMessage) []string {
	if msg.Media == nil {
		return []string{}
	}

	// Message id plus a short timestamp hash keeps staging filenames unique
	// across concurrent processing of different messages.
	filename := stagingFilename(msg.ID, msg.Date)

	path, err := h.downloader.DownloadMedia(ctx, msg, filepath.Join(h.stagingDir, filename))
	if err != nil {
		h.logger.Error("media download failed",
			logger.Int64("message_id", msg.ID),
			logger.Error(err),
		)
		metrics.MediaFailures.Inc()
		return []string{}
	}
	defer func() {
		if rmErr := os.Remove(path); rmErr != nil && !os.IsNotExist(rmErr) {
			h.logger.Warn("failed to remove staging file",
				logger.String("path", path),
				logger.Error(rmErr),
			)
		}
	}()

	key := fmt.Sprintf("channel_%d/%s", channelID, filename)
	uri, err := h.store.Put(ctx, key, path)
	if err != nil {
		h.logger.Error("media upload failed",
			logger.Int64("message_id", msg.ID),
			logger.String("key", key),
			logger.Error(err),
		)
		metrics.MediaFailures.Inc()
		return []string{}
	}

	return []string{uri}
}

func stagingFilename(messageID int64, ts time.Time) string {
	sum := md5.Sum([]byte(ts.UTC().Format(time.RFC3339Nano)))
	return fmt.Sprintf("%d_%s", messageID, hex.EncodeToString(sum[:])[:8])
}
