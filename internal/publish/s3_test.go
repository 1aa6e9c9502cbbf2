package publish

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakePutter struct {
	objects map[string]string
	err     error
}

func (f *fakePutter) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)] = string(body)
	return &s3.PutObjectOutput{}, nil
}

func TestUpload(t *testing.T) {
	dir := t.TempDir()
	report := filepath.Join(dir, "chat_session.md")
	require.NoError(t, os.WriteFile(report, []byte("# report"), 0o644))

	fake := &fakePutter{objects: map[string]string{}}
	p := &S3{client: fake, bucket: "bkt", prefix: "ragbench", logger: zap.NewNop()}

	n, err := p.Upload(context.Background(), filepath.Join("outputs", "2024-01-02", "10-11-12"),
		[]string{report, filepath.Join(dir, "missing.prom")})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, map[string]string{"bkt/ragbench/outputs/2024-01-02/10-11-12/chat_session.md": "# report"}, fake.objects)
}

func TestUploadError(t *testing.T) {
	file := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(file, []byte("a: 1"), 0o644))

	p := &S3{client: &fakePutter{err: errors.New("denied")}, bucket: "bkt", logger: zap.NewNop()}
	_, err := p.Upload(context.Background(), "run", []string{file})
	assert.ErrorContains(t, err, "denied")
}
