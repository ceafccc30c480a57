package services

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pgrepo "github.com/yoockh/yoointerview/internal/repositories/postgres"
	"github.com/yoockh/yoointerview/internal/utils"
)

type fakeBucket struct {
	objects map[string]string
}

func (b *fakeBucket) Upload(_ context.Context, name, _ string, r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	if b.objects == nil {
		b.objects = map[string]string{}
	}
	b.objects[name] = string(data)
	return name, nil
}

func (b *fakeBucket) SignedGetURL(_ context.Context, name string, ttl time.Duration) (string, error) {
	return "https://signed.example/" + name + "?ttl=" + ttl.String(), nil
}

func TestCVFileService_UploadAndSign(t *testing.T) {
	bucket := &fakeBucket{}
	svc := NewCVFileService(pgrepo.NewCVFileRepo(setupTestDB(t)), bucket, bucket)
	ctx := context.Background()

	_, _, err := svc.LatestURL(ctx, testUser, time.Minute)
	assert.True(t, utils.IsCode(err, utils.CodeNotFound))

	row, err := svc.Upload(ctx, testUser, "cv.pdf", 9, "application/pdf", "cv/"+testUser+"/a.pdf", strings.NewReader("%PDF-1.7"))
	require.NoError(t, err)
	assert.Equal(t, "cv/"+testUser+"/a.pdf", row.FilePath)
	assert.Equal(t, "%PDF-1.7", bucket.objects[row.FilePath])

	got, url, err := svc.LatestURL(ctx, testUser, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, row.ID, got.ID)
	assert.Equal(t, "https://signed.example/cv/"+testUser+"/a.pdf?ttl=1m0s", url)
}
