package storage

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"io"
	"path"
	"strconv"
	"strings"
)

// ImagePrefix is the key prefix of every image this server manages. Post
// image URLs that start with it are objects in the bucket. Keys are
// images/<uploader id>/<random>-<name>.
const ImagePrefix = "images/"

// ErrUnsupportedImage is returned for uploads that are not png or jpeg.
var ErrUnsupportedImage = errors.New("unsupported image type")

var allowedImageTypes = map[string]struct{}{
	"image/png":  {},
	"image/jpg":  {},
	"image/jpeg": {},
}

// ImageStore keeps post images in object storage under ImagePrefix.
type ImageStore struct {
	storage *Storage
}

func NewImageStore(storage *Storage) *ImageStore {
	return &ImageStore{storage: storage}
}

// Save uploads an image on behalf of ownerID and returns the path to store
// on the post.
func (s *ImageStore) Save(ctx context.Context, ownerID int64, filename string, r io.Reader, size int64, contentType string) (string, error) {
	if ownerID < 1 {
		return "", errors.New("image owner is required")
	}
	contentType = strings.ToLower(strings.TrimSpace(contentType))
	if _, ok := allowedImageTypes[contentType]; !ok {
		return "", ErrUnsupportedImage
	}

	key := ImagePrefix + strconv.FormatInt(ownerID, 10) + "/" + newObjectID() + "-" + sanitizeFilename(filename)
	if err := s.storage.Put(ctx, key, r, size, contentType); err != nil {
		return "", err
	}
	return key, nil
}

// Open returns a managed image for streaming.
func (s *ImageStore) Open(ctx context.Context, imagePath string) (Object, error) {
	if !s.Managed(imagePath) {
		return Object{}, ErrObjectNotFound
	}
	return s.storage.Get(ctx, imagePath)
}

// Remove deletes a managed image. Unmanaged paths are ignored.
func (s *ImageStore) Remove(ctx context.Context, imagePath string) error {
	if !s.Managed(imagePath) {
		return nil
	}
	return s.storage.Delete(ctx, imagePath)
}

// Managed reports whether the path names an object this store owns.
func (s *ImageStore) Managed(imagePath string) bool {
	return IsManagedImage(imagePath)
}

// OwnedBy reports whether the path names a managed image uploaded by
// userID.
func (s *ImageStore) OwnedBy(imagePath string, userID int64) bool {
	owner, ok := ImageOwner(imagePath)
	return ok && owner == userID
}

// IsManagedImage reports whether the path lies under ImagePrefix.
func IsManagedImage(imagePath string) bool {
	if !strings.HasPrefix(imagePath, ImagePrefix) || len(imagePath) == len(ImagePrefix) {
		return false
	}
	return path.Clean(imagePath) == imagePath
}

// ImageOwner returns the uploader id encoded in a managed image key.
func ImageOwner(imagePath string) (int64, bool) {
	if !IsManagedImage(imagePath) {
		return 0, false
	}
	owner, name, found := strings.Cut(strings.TrimPrefix(imagePath, ImagePrefix), "/")
	if !found || name == "" {
		return 0, false
	}
	id, err := strconv.ParseInt(owner, 10, 64)
	if err != nil || id < 1 || strconv.FormatInt(id, 10) != owner {
		return 0, false
	}
	return id, true
}

func sanitizeFilename(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		case r == ' ':
			b.WriteRune('_')
		}
	}
	cleaned := strings.Trim(b.String(), ".")
	if cleaned == "" {
		return "image"
	}
	return cleaned
}

func newObjectID() string {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "0000000000000000"
	}
	return hex.EncodeToString(buf[:])
}
