package media

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	pkgerrors "github.com/foodrelief/relief-backend/pkg/errors"
)

const (
	keyPrefix   = "evidence"
	readURLTTL  = 7 * 24 * time.Hour
	maxPerBatch = 20
)

type urlSigner interface {
	SignedURL(bucket, object, contentType string, expires time.Duration) (string, error)
	SignedReadURL(bucket, object string, expires time.Duration) (string, error)
}

// Service issues direct-to-bucket upload URLs for evidence files and checks
// the object keys clients hand back.
type Service interface {
	GenerateUploadURLs(ctx context.Context, input UploadInput) ([]UploadTarget, error)
	ValidateKeys(keys []string) error
}

// UploadInput asks for FileCount upload slots. FileTypes holds one mime type
// per file, or a single type applied to every file.
type UploadInput struct {
	OwnerID   uuid.UUID
	FileCount int
	FileTypes []string
}

type UploadTarget struct {
	UploadURL   string    `json:"upload_url"`
	FileKey     string    `json:"file_key"`
	CDNURL      string    `json:"cdn_url"`
	ContentType string    `json:"content_type"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Options configures bucket placement and the evidence key policy.
type Options struct {
	Bucket     string
	UploadTTL  time.Duration
	CDNBaseURL string
	MaxKeys    int
}

type service struct {
	signer  urlSigner
	bucket  string
	ttl     time.Duration
	cdnBase string
	maxKeys int
	now     func() time.Time
}

func NewService(signer urlSigner, opts Options) (Service, error) {
	if signer == nil {
		return nil, fmt.Errorf("url signer required")
	}
	if opts.Bucket == "" {
		return nil, fmt.Errorf("gcs bucket required")
	}
	if opts.UploadTTL <= 0 {
		return nil, fmt.Errorf("upload ttl must be positive")
	}
	if opts.MaxKeys <= 0 {
		return nil, fmt.Errorf("max evidence keys must be positive")
	}
	return &service{
		signer:  signer,
		bucket:  opts.Bucket,
		ttl:     opts.UploadTTL,
		cdnBase: strings.TrimRight(opts.CDNBaseURL, "/"),
		maxKeys: opts.MaxKeys,
		now:     time.Now,
	}, nil
}

func (s *service) GenerateUploadURLs(ctx context.Context, input UploadInput) ([]UploadTarget, error) {
	if input.OwnerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if input.FileCount <= 0 || input.FileCount > maxPerBatch {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "file_count must be between 1 and %d", maxPerBatch)
	}
	types, err := expandTypes(input.FileCount, input.FileTypes)
	if err != nil {
		return nil, err
	}

	expiresAt := s.now().Add(s.ttl).UTC()
	out := make([]UploadTarget, 0, input.FileCount)
	for _, contentType := range types {
		key := buildKey(input.OwnerID, uuid.New(), extensionsByMime[contentType])
		uploadURL, err := s.signer.SignedURL(s.bucket, key, contentType, s.ttl)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sign upload url")
		}
		cdnURL, err := s.publicURL(key)
		if err != nil {
			return nil, err
		}
		out = append(out, UploadTarget{
			UploadURL:   uploadURL,
			FileKey:     key,
			CDNURL:      cdnURL,
			ContentType: contentType,
			ExpiresAt:   expiresAt,
		})
	}
	return out, nil
}

// ValidateKeys accepts between one and MaxKeys distinct keys issued by
// GenerateUploadURLs.
func (s *service) ValidateKeys(keys []string) error {
	if len(keys) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "at least one media key is required")
	}
	if len(keys) > s.maxKeys {
		return pkgerrors.Newf(pkgerrors.CodeValidation, "at most %d media keys are allowed", s.maxKeys)
	}
	seen := make(map[string]struct{}, len(keys))
	for _, key := range keys {
		if !wellFormedKey(key) {
			return pkgerrors.Newf(pkgerrors.CodeValidation, "media key %q was not issued by the upload service", key).
				WithDetails(map[string]any{"key": key})
		}
		if _, dup := seen[key]; dup {
			return pkgerrors.Newf(pkgerrors.CodeValidation, "media key %q is listed twice", key)
		}
		seen[key] = struct{}{}
	}
	return nil
}

func (s *service) publicURL(key string) (string, error) {
	if s.cdnBase != "" {
		return s.cdnBase + "/" + key, nil
	}
	signed, err := s.signer.SignedReadURL(s.bucket, key, readURLTTL)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sign read url")
	}
	return signed, nil
}

func expandTypes(count int, fileTypes []string) ([]string, error) {
	if len(fileTypes) != 1 && len(fileTypes) != count {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "file_types must hold one type or one per file")
	}
	out := make([]string, count)
	for i := range out {
		raw := fileTypes[0]
		if len(fileTypes) == count {
			raw = fileTypes[i]
		}
		normalized, err := normalizeMimeType(raw)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "file_types contains an invalid mime type")
		}
		if _, ok := extensionsByMime[normalized]; !ok {
			return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "evidence must be %s", allowedMimeDescription()).
				WithDetails(map[string]any{"mime_type": normalized})
		}
		out[i] = normalized
	}
	return out, nil
}

func buildKey(ownerID, fileID uuid.UUID, ext string) string {
	return path.Join(keyPrefix, ownerID.String(), fileID.String()+ext)
}

func wellFormedKey(key string) bool {
	parts := strings.Split(key, "/")
	if len(parts) != 3 || parts[0] != keyPrefix {
		return false
	}
	if _, err := uuid.Parse(parts[1]); err != nil {
		return false
	}
	ext := path.Ext(parts[2])
	if _, ok := allowedExtensions[ext]; !ok {
		return false
	}
	_, err := uuid.Parse(strings.TrimSuffix(parts[2], ext))
	return err == nil
}
