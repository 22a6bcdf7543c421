package media

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/foodrelief/relief-backend/pkg/errors"
)

type stubSigner struct {
	err      error
	readErr  error
	puts     []string
	types    []string
	readKeys []string
}

func (s *stubSigner) SignedURL(bucket, object, contentType string, expires time.Duration) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	s.puts = append(s.puts, object)
	s.types = append(s.types, contentType)
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s?sig=put", bucket, object), nil
}

func (s *stubSigner) SignedReadURL(bucket, object string, expires time.Duration) (string, error) {
	if s.readErr != nil {
		return "", s.readErr
	}
	s.readKeys = append(s.readKeys, object)
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s?sig=get", bucket, object), nil
}

func newTestService(t *testing.T, signer *stubSigner, cdn string) *service {
	t.Helper()
	svc, err := NewService(signer, Options{Bucket: "relief-evidence", UploadTTL: 15 * time.Minute, CDNBaseURL: cdn, MaxKeys: 3})
	require.NoError(t, err)
	impl := svc.(*service)
	impl.now = func() time.Time { return time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC) }
	return impl
}

func TestGenerateUploadURLsWithCDN(t *testing.T) {
	signer := &stubSigner{}
	svc := newTestService(t, signer, "https://cdn.example.org/")
	owner := uuid.New()

	targets, err := svc.GenerateUploadURLs(context.Background(), UploadInput{
		OwnerID:   owner,
		FileCount: 2,
		FileTypes: []string{"image/JPEG", "application/pdf; charset=binary"},
	})
	require.NoError(t, err)
	require.Len(t, targets, 2)

	assert.True(t, strings.HasPrefix(targets[0].FileKey, "evidence/"+owner.String()+"/"))
	assert.True(t, strings.HasSuffix(targets[0].FileKey, ".jpg"))
	assert.True(t, strings.HasSuffix(targets[1].FileKey, ".pdf"))
	assert.NotEqual(t, targets[0].FileKey, targets[1].FileKey)
	assert.Equal(t, "https://cdn.example.org/"+targets[0].FileKey, targets[0].CDNURL)
	assert.Equal(t, time.Date(2026, 3, 1, 8, 15, 0, 0, time.UTC), targets[0].ExpiresAt)
	assert.Equal(t, []string{"image/jpeg", "application/pdf"}, signer.types)
	assert.Empty(t, signer.readKeys)

	keys := []string{targets[0].FileKey, targets[1].FileKey}
	assert.NoError(t, svc.ValidateKeys(keys))
}

func TestGenerateUploadURLsFallsBackToSignedReads(t *testing.T) {
	signer := &stubSigner{}
	svc := newTestService(t, signer, "")

	targets, err := svc.GenerateUploadURLs(context.Background(), UploadInput{OwnerID: uuid.New(), FileCount: 3, FileTypes: []string{"video/mp4"}})
	require.NoError(t, err)
	require.Len(t, targets, 3)
	for _, target := range targets {
		assert.Contains(t, target.CDNURL, "sig=get")
		assert.Equal(t, "video/mp4", target.ContentType)
	}
	assert.Len(t, signer.readKeys, 3)
}

func TestGenerateUploadURLsValidation(t *testing.T) {
	svc := newTestService(t, &stubSigner{}, "")
	ctx := context.Background()

	_, err := svc.GenerateUploadURLs(ctx, UploadInput{FileCount: 1, FileTypes: []string{"image/png"}})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized))

	cases := map[string]UploadInput{
		"zero files":     {OwnerID: uuid.New(), FileTypes: []string{"image/png"}},
		"too many files": {OwnerID: uuid.New(), FileCount: maxPerBatch + 1, FileTypes: []string{"image/png"}},
		"type mismatch":  {OwnerID: uuid.New(), FileCount: 3, FileTypes: []string{"image/png", "image/png"}},
		"bad mime":       {OwnerID: uuid.New(), FileCount: 1, FileTypes: []string{"not a mime"}},
		"disallowed":     {OwnerID: uuid.New(), FileCount: 1, FileTypes: []string{"application/zip"}},
	}
	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.GenerateUploadURLs(ctx, input)
			assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "got %v", err)
		})
	}
}

func TestGenerateUploadURLsSignerFailure(t *testing.T) {
	svc := newTestService(t, &stubSigner{err: fmt.Errorf("no key")}, "")
	_, err := svc.GenerateUploadURLs(context.Background(), UploadInput{OwnerID: uuid.New(), FileCount: 1, FileTypes: []string{"image/png"}})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))

	svc = newTestService(t, &stubSigner{readErr: fmt.Errorf("no key")}, "")
	_, err = svc.GenerateUploadURLs(context.Background(), UploadInput{OwnerID: uuid.New(), FileCount: 1, FileTypes: []string{"image/png"}})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))
}

func TestValidateKeys(t *testing.T) {
	svc := newTestService(t, &stubSigner{}, "")
	valid := buildKey(uuid.New(), uuid.New(), ".jpg")

	assert.NoError(t, svc.ValidateKeys([]string{valid}))

	cases := map[string][]string{
		"empty":         nil,
		"too many":      {buildKey(uuid.New(), uuid.New(), ".jpg"), buildKey(uuid.New(), uuid.New(), ".jpg"), buildKey(uuid.New(), uuid.New(), ".jpg"), valid},
		"duplicate":     {valid, valid},
		"foreign":       {"uploads/" + uuid.NewString() + "/" + uuid.NewString() + ".jpg"},
		"bad owner":     {"evidence/me/" + uuid.NewString() + ".jpg"},
		"bad extension": {"evidence/" + uuid.NewString() + "/" + uuid.NewString() + ".exe"},
		"traversal":     {"evidence/" + uuid.NewString() + "/../secret.jpg"},
	}
	for name, keys := range cases {
		t.Run(name, func(t *testing.T) {
			assert.True(t, pkgerrors.IsCode(svc.ValidateKeys(keys), pkgerrors.CodeValidation))
		})
	}
}

func TestNewServiceRequirements(t *testing.T) {
	_, err := NewService(nil, Options{Bucket: "b", UploadTTL: time.Minute, MaxKeys: 1})
	assert.Error(t, err)
	_, err = NewService(&stubSigner{}, Options{UploadTTL: time.Minute, MaxKeys: 1})
	assert.Error(t, err)
	_, err = NewService(&stubSigner{}, Options{Bucket: "b", MaxKeys: 1})
	assert.Error(t, err)
	_, err = NewService(&stubSigner{}, Options{Bucket: "b", UploadTTL: time.Minute})
	assert.Error(t, err)
}

func TestAllowedMimeDescription(t *testing.T) {
	assert.Equal(t, "PDFs, images, or videos", allowedMimeDescription())
}
