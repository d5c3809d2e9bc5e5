package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xelth-com/assetledger/internal/apperr"
	"github.com/xelth-com/assetledger/internal/config"
)

func TestExtension(t *testing.T) {
	for _, name := range []string{"invoice.PDF", "photo.jpeg", "a.b.docx", "x.png"} {
		_, err := Extension(name)
		assert.NoError(t, err, name)
	}
	for _, name := range []string{"script.sh", "noext", "archive.zip", ".pdf.exe"} {
		_, err := Extension(name)
		assert.True(t, errors.Is(err, apperr.ErrInvalid), name)
	}
	assert.Equal(t, []string{"doc", "docx", "jpeg", "jpg", "pdf", "png"}, AllowedExtensions())
}

func TestLocalRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocal(dir, 1024)
	require.NoError(t, err)
	ctx := context.Background()

	ref, err := store.Save(ctx, strings.NewReader("signed receipt"), "pdf")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(ref, "proof_"))
	assert.True(t, strings.HasSuffix(ref, ".pdf"))

	rc, err := store.Open(ctx, ref)
	require.NoError(t, err)
	data, _ := io.ReadAll(rc)
	rc.Close()
	assert.Equal(t, "signed receipt", string(data))

	require.NoError(t, store.Delete(ctx, ref))
	_, err = os.Stat(filepath.Join(dir, ref))
	assert.True(t, os.IsNotExist(err))

	_, err = store.Open(ctx, ref)
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
}

func TestLocalRejects(t *testing.T) {
	store, err := NewLocal(t.TempDir(), 8)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = store.Save(ctx, strings.NewReader("tiny"), "exe")
	assert.True(t, errors.Is(err, apperr.ErrInvalid))

	_, err = store.Save(ctx, bytes.NewReader(make([]byte, 9)), "png")
	assert.True(t, errors.Is(err, apperr.ErrInvalid))

	_, err = store.Open(ctx, "../etc/passwd")
	assert.True(t, errors.Is(err, apperr.ErrInvalid))
}

type fakeS3 struct {
	s3iface.S3API
	objects map[string][]byte
}

func (f *fakeS3) PutObjectWithContext(_ aws.Context, in *s3.PutObjectInput, _ ...request.Option) (*s3.PutObjectOutput, error) {
	data, _ := io.ReadAll(in.Body)
	f.objects[*in.Bucket+"/"+*in.Key] = data
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObjectWithContext(_ aws.Context, in *s3.GetObjectInput, _ ...request.Option) (*s3.GetObjectOutput, error) {
	data, ok := f.objects[*in.Bucket+"/"+*in.Key]
	if !ok {
		return nil, awserr.New(s3.ErrCodeNoSuchKey, "missing", nil)
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) DeleteObjectWithContext(_ aws.Context, in *s3.DeleteObjectInput, _ ...request.Option) (*s3.DeleteObjectOutput, error) {
	delete(f.objects, *in.Bucket+"/"+*in.Key)
	return &s3.DeleteObjectOutput{}, nil
}

func TestS3RoundTrip(t *testing.T) {
	client := &fakeS3{objects: map[string][]byte{}}
	store := NewS3WithClient(client, "it-proofs", "proofs/", DefaultMaxBytes)
	ctx := context.Background()

	ref, err := store.Save(ctx, strings.NewReader("%PDF-1.4"), "PDF")
	require.NoError(t, err)
	assert.Contains(t, client.objects, "it-proofs/proofs/"+ref)

	rc, err := store.Open(ctx, ref)
	require.NoError(t, err)
	data, _ := io.ReadAll(rc)
	assert.Equal(t, "%PDF-1.4", string(data))

	require.NoError(t, store.Delete(ctx, ref))
	_, err = store.Open(ctx, ref)
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
}

func TestNewSelectsBackend(t *testing.T) {
	store, err := New(config.StorageConfig{Backend: "local", UploadDir: t.TempDir(), MaxUploadMB: 1})
	require.NoError(t, err)
	assert.IsType(t, &Local{}, store)

	_, err = New(config.StorageConfig{Backend: "ftp"})
	assert.Error(t, err)
}
