package service

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/gema-grading-api/internal/gradingconfig"
	"github.com/noah-isme/gema-grading-api/internal/middleware"
	"github.com/noah-isme/gema-grading-api/internal/observability"
)

var (
	// ErrUploadTooLarge indicates the payload exceeded the configured limit.
	ErrUploadTooLarge = errors.New("file exceeds maximum allowed size")
	// ErrUploadTypeNotAllowed indicates the MIME type is not permitted.
	ErrUploadTypeNotAllowed = errors.New("file type not allowed")
	// ErrUploadEmpty indicates a zero-byte file or a request without files.
	ErrUploadEmpty = errors.New("file is empty")
)

var allowedDocumentTypes = map[string]struct{}{
	"application/pdf":    {},
	"text/plain":         {},
	"text/markdown":      {},
	"text/rtf":           {},
	"application/rtf":    {},
	"application/msword": {},
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": {},
	"application/vnd.oasis.opendocument.text":                                 {},
}

// FileStorage abstracts upload destinations.
type FileStorage interface {
	Upload(ctx context.Context, name string, reader io.Reader) (string, error)
}

// UploadService turns picked files into file references for the configuration store.
type UploadService interface {
	Upload(ctx context.Context, file *multipart.FileHeader) (gradingconfig.FileRef, error)
	UploadAll(ctx context.Context, files []*multipart.FileHeader) ([]gradingconfig.FileRef, error)
}

type uploadService struct {
	storage FileStorage
	logger  zerolog.Logger
	maxSize int64
	tracer  trace.Tracer
}

// NewUploadService constructs an upload service. A nil storage keeps only
// the metadata and issues urn:uuid handles.
func NewUploadService(storage FileStorage, maxSizeMB int, logger zerolog.Logger) UploadService {
	if maxSizeMB <= 0 {
		maxSizeMB = 10
	}
	return &uploadService{
		storage: storage,
		logger:  logger.With().Str("component", "upload_service").Logger(),
		maxSize: int64(maxSizeMB) * 1024 * 1024,
		tracer:  otel.Tracer("github.com/noah-isme/gema-grading-api/internal/service/upload"),
	}
}

// UploadAll stores every file or none: the first failure aborts the batch.
func (s *uploadService) UploadAll(ctx context.Context, files []*multipart.FileHeader) ([]gradingconfig.FileRef, error) {
	if len(files) == 0 {
		return nil, ErrUploadEmpty
	}
	refs := make([]gradingconfig.FileRef, 0, len(files))
	for _, file := range files {
		ref, err := s.Upload(ctx, file)
		if err != nil {
			name := ""
			if file != nil {
				name = file.Filename
			}
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		refs = append(refs, ref)
	}
	return refs, nil
}

func (s *uploadService) Upload(ctx context.Context, file *multipart.FileHeader) (gradingconfig.FileRef, error) {
	ctx, span := s.tracer.Start(ctx, "upload.store")
	defer span.End()

	span.SetAttributes(attribute.Int64("upload.max_bytes", s.maxSize))
	if correlation := middleware.CorrelationIDFromContext(ctx); correlation != "" {
		span.SetAttributes(attribute.String("correlation_id", correlation))
	}
	logger := middleware.LoggerFromContext(ctx, s.logger)

	start := time.Now()
	defer func() {
		observability.UploadLatency().Observe(time.Since(start).Seconds())
	}()

	if file == nil {
		span.RecordError(ErrUploadEmpty)
		span.SetStatus(codes.Error, "file missing")
		return gradingconfig.FileRef{}, ErrUploadEmpty
	}
	span.SetAttributes(
		attribute.String("upload.original_name", strings.TrimSpace(file.Filename)),
		attribute.Int64("upload.request_size", file.Size),
	)

	if file.Size > s.maxSize {
		return gradingconfig.FileRef{}, s.reject(span, "size", ErrUploadTooLarge)
	}

	handle, err := file.Open()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "open failed")
		return gradingconfig.FileRef{}, err
	}
	defer handle.Close()

	buf := bytes.NewBuffer(nil)
	if _, err := io.Copy(buf, io.LimitReader(handle, s.maxSize+1)); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "read failed")
		return gradingconfig.FileRef{}, err
	}
	if int64(buf.Len()) > s.maxSize {
		return gradingconfig.FileRef{}, s.reject(span, "size", ErrUploadTooLarge)
	}
	if buf.Len() == 0 {
		return gradingconfig.FileRef{}, s.reject(span, "empty", ErrUploadEmpty)
	}

	fileType := normalizeMime(mimetype.Detect(buf.Bytes()).String(), file.Filename)
	span.SetAttributes(attribute.String("upload.detected_mime", fileType))
	if _, ok := allowedDocumentTypes[fileType]; !ok {
		return gradingconfig.FileRef{}, s.reject(span, "type", ErrUploadTypeNotAllowed)
	}

	checksum := sha256.Sum256(buf.Bytes())
	displayName := displayFileName(file.Filename)
	storedName := sanitizeFileName(displayName)

	location := "urn:uuid:" + uuid.NewString()
	if s.storage != nil {
		location, err = s.storage.Upload(ctx, storedName, bytes.NewReader(buf.Bytes()))
		if err != nil {
			observability.UploadRejected().WithLabelValues("storage").Inc()
			logger.Error().Err(err).Str("file_name", displayName).Msg("document storage failed")
			span.RecordError(err)
			span.SetStatus(codes.Error, "storage failed")
			return gradingconfig.FileRef{}, err
		}
	}

	observability.UploadRequests().WithLabelValues(fileType).Inc()
	span.SetStatus(codes.Ok, "stored")
	logger.Debug().Str("file_name", displayName).Str("mime", fileType).Int("size", buf.Len()).Msg("document accepted")

	return gradingconfig.FileRef{
		Name:      displayName,
		Handle:    location,
		MimeType:  fileType,
		SizeBytes: int64(buf.Len()),
		Checksum:  hex.EncodeToString(checksum[:]),
	}, nil
}

func (s *uploadService) reject(span trace.Span, reason string, err error) error {
	observability.UploadRejected().WithLabelValues(reason).Inc()
	span.RecordError(err)
	span.SetStatus(codes.Error, "rejected: "+reason)
	return err
}

func displayFileName(name string) string {
	base := strings.TrimSpace(filepath.Base(strings.ReplaceAll(name, "\\", "/")))
	if base == "" || base == "." || base == "/" {
		return "document"
	}
	return base
}

func sanitizeFileName(name string) string {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	base = strings.ToLower(base)
	base = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			return r
		}
		if r == '-' || r == '_' {
			return r
		}
		return '-'
	}, base)
	base = strings.Trim(base, "-")
	if base == "" {
		base = fmt.Sprintf("document-%d", time.Now().Unix())
	}
	ext := strings.ToLower(filepath.Ext(name))
	if ext == "" {
		ext = ".bin"
	}
	return base + ext
}

// normalizeMime strips parameters and refines generic text detection using
// the file extension, since markdown and plain text share a signature.
func normalizeMime(detected, filename string) string {
	lower := strings.ToLower(strings.TrimSpace(detected))
	if i := strings.Index(lower, ";"); i >= 0 {
		lower = strings.TrimSpace(lower[:i])
	}
	if lower == "text/plain" {
		switch strings.ToLower(filepath.Ext(filename)) {
		case ".md", ".markdown":
			return "text/markdown"
		}
	}
	return lower
}
