package storage

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSecureFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"My cool movie.mov", "My_cool_movie.mov"},
		{"../../../etc/passwd", "passwd"},
		{`C:\Users\john\photo.png`, "photo.png"},
		{"i contain cool \xfcml\xe4uts.txt", "i_contain_cool_mluts.txt"},
		{"..", ""},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SecureFilename(tt.in), tt.in)
	}
}

func TestObjectKey(t *testing.T) {
	key := ObjectKey("/uploads/", 7, "cat.png")
	assert.True(t, strings.HasPrefix(key, "uploads/7/"), key)
	assert.True(t, strings.HasSuffix(key, "-cat.png"), key)
	assert.NotEqual(t, key, ObjectKey("uploads", 7, "cat.png"))

	assert.True(t, strings.HasPrefix(ObjectKey("", 3, "a.txt"), "3/"))
}

func TestS3ServiceUpload(t *testing.T) {
	var (
		mu      sync.Mutex
		gotPath string
		gotBody string
		gotType string
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		gotPath = r.URL.Path
		gotBody = string(body)
		gotType = r.Header.Get("Content-Type")
		mu.Unlock()
		w.Header().Set("ETag", `"etag"`)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := s3.New(s3.Options{
		Region:       "us-east-1",
		BaseEndpoint: aws.String(server.URL),
		UsePathStyle: true,
		Credentials:  credentials.NewStaticCredentialsProvider("key", "secret", ""),
	})
	svc := NewS3Service(client)

	loc, err := svc.Upload(context.Background(), "uploads/1/abc-cat.txt", strings.NewReader("meow"), UploadOptions{
		Bucket:      "media",
		ContentType: "text/plain",
	})
	require.NoError(t, err)
	assert.Equal(t, "s3://media/uploads/1/abc-cat.txt", loc)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "/media/uploads/1/abc-cat.txt", gotPath)
	assert.Contains(t, gotBody, "meow")
	assert.Equal(t, "text/plain", gotType)
}

func TestS3ServiceRequiresBucket(t *testing.T) {
	svc := NewS3Service(s3.New(s3.Options{Region: "us-east-1"}))
	_, err := svc.Upload(context.Background(), "k", strings.NewReader("x"), UploadOptions{})
	assert.Error(t, err)
}
