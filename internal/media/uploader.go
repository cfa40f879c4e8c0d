// AngelaMos | 2026
// uploader.go

package media

import (
	"bytes"
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"github.com/wealthsupernova/supernova/internal/core"
)

const (
	DefaultMaxSize = 5 << 20
	keyPrefix      = "newsletter_images/"
	suffixLength   = 13
)

// allowedTypes maps sniffed content types to the extensions accepted for them.
var allowedTypes = map[string][]string{
	"image/jpeg": {".jpg", ".jpeg"},
	"image/png":  {".png"},
	"image/gif":  {".gif"},
	"image/webp": {".webp"},
}

type Upload struct {
	Key         string `json:"key"`
	URL         string `json:"url"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
}

type Uploader struct {
	store   ObjectStore
	maxSize int64
	now     func() time.Time
	logger  *slog.Logger
}

func NewUploader(store ObjectStore, maxSize int64, logger *slog.Logger) *Uploader {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Uploader{
		store:   store,
		maxSize: maxSize,
		now:     time.Now,
		logger:  logger,
	}
}

func (u *Uploader) MaxSize() int64 {
	return u.maxSize
}

// Upload validates an image and writes it to the store. declaredSize is the
// client-reported length, or -1 when unknown. Nothing is written unless the
// image passes every check.
func (u *Uploader) Upload(
	ctx context.Context,
	filename string,
	declaredSize int64,
	r io.Reader,
) (*Upload, error) {
	if declaredSize > u.maxSize {
		return nil, u.tooLarge()
	}

	data, err := io.ReadAll(io.LimitReader(r, u.maxSize+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > u.maxSize {
		return nil, u.tooLarge()
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("upload: file is empty: %w", core.ErrInvalidInput)
	}

	mime := mimetype.Detect(data)
	contentType := mime.String()
	if i := strings.IndexByte(contentType, ';'); i >= 0 {
		contentType = contentType[:i]
	}

	exts, ok := allowedTypes[contentType]
	if !ok {
		return nil, fmt.Errorf(
			"upload: %s is not an accepted image type (jpeg, png, gif, webp): %w",
			contentType,
			core.ErrInvalidInput,
		)
	}

	key, err := u.objectKey(pickExtension(filename, exts, mime.Extension()))
	if err != nil {
		return nil, err
	}

	obj := Object{
		Key:         key,
		ContentType: contentType,
		Size:        int64(len(data)),
		Body:        bytes.NewReader(data),
	}
	if err := u.store.Put(ctx, obj); err != nil {
		return nil, err
	}

	u.logger.Info("image uploaded",
		"key", key,
		"content_type", contentType,
		"size", obj.Size,
	)

	return &Upload{
		Key:         key,
		URL:         u.store.PublicURL(key),
		ContentType: contentType,
		Size:        obj.Size,
	}, nil
}

func (u *Uploader) tooLarge() error {
	return fmt.Errorf(
		"upload: file exceeds the %d MB limit: %w",
		u.maxSize>>20,
		core.ErrInvalidInput,
	)
}

// objectKey returns newsletter_images/<unix millis>-<random base36>.<ext>.
func (u *Uploader) objectKey(ext string) (string, error) {
	suffix, err := randomBase36(suffixLength)
	if err != nil {
		return "", fmt.Errorf("generate object key: %w", err)
	}
	return keyPrefix +
		strconv.FormatInt(u.now().UnixMilli(), 10) +
		"-" + suffix + ext, nil
}

// pickExtension keeps the original extension when it agrees with the sniffed
// type, otherwise uses the sniffed one.
func pickExtension(filename string, allowed []string, sniffed string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	for _, a := range allowed {
		if ext == a {
			return ext
		}
	}
	if sniffed != "" {
		return sniffed
	}
	return allowed[0]
}

const base36Alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

func randomBase36(n int) (string, error) {
	var sb strings.Builder
	sb.Grow(n)
	limit := big.NewInt(int64(len(base36Alphabet)))
	for range n {
		idx, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", err
		}
		sb.WriteByte(base36Alphabet[idx.Int64()])
	}
	return sb.String(), nil
}
