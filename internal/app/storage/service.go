/*
Package storage provides file storage for user uploads: avatar images and
documents submitted for analysis. Files never pass through the API server;
clients upload and download directly against S3-compatible storage using
short-lived presigned URLs.
*/
package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"bizhub/internal/pkg/errs"
	"bizhub/internal/pkg/randx"
)

const (
	// UploadURLTTL is how long a presigned upload URL stays valid.
	UploadURLTTL = 10 * time.Minute

	// DownloadURLTTL is how long a presigned download URL stays valid.
	DownloadURLTTL = 1 * time.Hour

	// MaxAvatarBytes bounds avatar image uploads.
	MaxAvatarBytes = 2 << 20

	// MaxDocumentBytes bounds document uploads.
	MaxDocumentBytes = 10 << 20
)

// avatarMimeTypes are the image types accepted for avatars.
var avatarMimeTypes = map[string]string{
	"image/png":  "png",
	"image/jpeg": "jpg",
	"image/webp": "webp",
}

// documentMimeTypes are the document types accepted for analysis uploads.
var documentMimeTypes = map[string]string{
	"application/pdf": "pdf",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": "docx",
	"text/plain": "txt",
}

// ServiceConfig holds the configuration required to connect to the storage service.
type ServiceConfig struct {
	S3BucketName      string
	S3Endpoint        string
	S3AccessKeyID     string
	S3SecretAccessKey string
}

// StorageService defines the public interface for the file storage service.
type StorageService interface {
	// PresignUpload generates a pre-signed URL for uploading a file.
	PresignUpload(
		ctx context.Context,
		key string,
		mimeType string,
		fileSize int64,
		duration time.Duration,
	) (string, error)

	// PresignDownload generates a pre-signed URL for downloading a file.
	PresignDownload(ctx context.Context, key string, duration time.Duration) (string, error)

	// Delete removes the file specified by the given key.
	Delete(ctx context.Context, key string) error
}

// NewStorageService is the factory function for StorageService.
// It initializes and returns a concrete implementation based on the provided configuration.
func NewStorageService(cfg ServiceConfig) (StorageService, error) {
	// Currently, only S3 compatible implementations are supported.
	return newS3Client(cfg)
}

// AvatarKey builds the storage key for a user's avatar upload and validates
// the request. The key embeds a fresh record id so replacing an avatar never
// serves a stale cached object.
func AvatarKey(uid, mimeType string, fileSize int64) (string, *errs.CustomError) {
	ext, ok := avatarMimeTypes[strings.ToLower(mimeType)]
	if !ok {
		return "", errs.NewError(errs.ErrInvalidParams, "unsupported avatar image type")
	}
	if fileSize <= 0 || fileSize > MaxAvatarBytes {
		return "", errs.NewError(errs.ErrInvalidParams,
			fmt.Sprintf("avatar must be between 1 byte and %d bytes", MaxAvatarBytes))
	}

	return fmt.Sprintf("avatars/%s/%s.%s", uid, randx.RecordID(), ext), nil
}

// DocumentKey builds the storage key for a document upload and validates the
// request.
func DocumentKey(uid, mimeType string, fileSize int64) (string, *errs.CustomError) {
	ext, ok := documentMimeTypes[strings.ToLower(mimeType)]
	if !ok {
		return "", errs.NewError(errs.ErrInvalidParams, "unsupported document type")
	}
	if fileSize <= 0 || fileSize > MaxDocumentBytes {
		return "", errs.NewError(errs.ErrInvalidParams,
			fmt.Sprintf("document must be between 1 byte and %d bytes", MaxDocumentBytes))
	}

	return fmt.Sprintf("documents/%s/%s.%s", uid, randx.RecordID(), ext), nil
}

// OwnsKey reports whether the given storage key belongs to the user: user
// uploads always live under a per-user prefix.
func OwnsKey(uid, key string) bool {
	return strings.HasPrefix(key, "avatars/"+uid+"/") || strings.HasPrefix(key, "documents/"+uid+"/")
}
