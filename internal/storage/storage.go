package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// UploadOptions conveys upload destination metadata.
type UploadOptions struct {
	Bucket      string
	ContentType string
}

// Service stores user uploaded files in remote object storage.
type Service interface {
	// Upload writes body under key and returns the object location.
	Upload(ctx context.Context, key string, body io.Reader, opts UploadOptions) (string, error)
}

var unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9_.-]`)

// SecureFilename reduces a client supplied file name to a safe ASCII base name.
// It returns "" when nothing usable remains.
func SecureFilename(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = path.Base(name)
	name = strings.Join(strings.Fields(name), "_")
	name = unsafeFilenameChars.ReplaceAllString(name, "")
	name = strings.Trim(name, "._")
	return name
}

// ObjectKey builds a unique key for an upload owned by userID.
func ObjectKey(prefix string, userID int64, filename string) string {
	key := fmt.Sprintf("%d/%s-%s", userID, uuid.NewString(), filename)
	if prefix = strings.Trim(prefix, "/"); prefix != "" {
		key = prefix + "/" + key
	}
	return key
}
