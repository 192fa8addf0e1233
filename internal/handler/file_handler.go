/*
Package handler provides HTTP handler functions for file upload and download.

Files never pass through the API server: handlers here validate the request,
then hand out short-lived presigned URLs against S3-compatible storage.
*/
package handler

import (
	"net/http"

	"bizhub/internal/app/storage"
	"bizhub/internal/pkg/auth/jwt"
	"bizhub/internal/pkg/errs"
	"bizhub/internal/pkg/logx"
	"bizhub/internal/pkg/req"
	"bizhub/internal/pkg/resp"
)

type PresignUploadInput struct {
	MimeType string `json:"mimeType"`
	FileSize int64  `json:"fileSize"`
}

type PresignDownloadInput struct {
	Key string `json:"key"`
}

// HandlePresignAvatarUpload returns a presigned PUT URL for a new avatar
// image and records the resulting key on the caller's account.
func HandlePresignAvatarUpload(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload := jwt.GetPayloadFromContext(r)
		if payload == nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		var input PresignUploadInput
		if customErr := req.BindJSON(r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		key, customErr := storage.AvatarKey(payload.ID, input.MimeType, input.FileSize)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		uploadURL, err := deps.StorageService.PresignUpload(r.Context(), key, input.MimeType, input.FileSize, storage.UploadURLTTL)
		if err != nil {
			logx.Error(err, "Failed to presign avatar upload", "user_id", payload.ID)
			resp.RespondError(w, r, errs.NewError(errs.ErrFileStorageFailed))
			return
		}

		if err := deps.Accounts.UpdateAvatar(r.Context(), payload.ID, key); err != nil {
			logx.Error(err, "Failed to record avatar key", "user_id", payload.ID)
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown, err))
			return
		}

		resp.RespondSuccess(w, r, map[string]any{
			"uploadUrl": uploadURL,
			"key":       key,
		})
	}
}

// HandlePresignDocumentUpload returns a presigned PUT URL for a document the
// caller wants analyzed.
func HandlePresignDocumentUpload(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload := jwt.GetPayloadFromContext(r)
		if payload == nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		var input PresignUploadInput
		if customErr := req.BindJSON(r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		key, customErr := storage.DocumentKey(payload.ID, input.MimeType, input.FileSize)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		uploadURL, err := deps.StorageService.PresignUpload(r.Context(), key, input.MimeType, input.FileSize, storage.UploadURLTTL)
		if err != nil {
			logx.Error(err, "Failed to presign document upload", "user_id", payload.ID)
			resp.RespondError(w, r, errs.NewError(errs.ErrFileStorageFailed))
			return
		}

		resp.RespondSuccess(w, r, map[string]any{
			"uploadUrl": uploadURL,
			"key":       key,
		})
	}
}

// HandlePresignDownload returns a presigned GET URL for one of the caller's
// own uploads.
func HandlePresignDownload(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload := jwt.GetPayloadFromContext(r)
		if payload == nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		var input PresignDownloadInput
		if customErr := req.BindJSON(r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		if !storage.OwnsKey(payload.ID, input.Key) {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		downloadURL, err := deps.StorageService.PresignDownload(r.Context(), input.Key, storage.DownloadURLTTL)
		if err != nil {
			logx.Error(err, "Failed to presign download", "user_id", payload.ID, "key", input.Key)
			resp.RespondError(w, r, errs.NewError(errs.ErrFileStorageFailed))
			return
		}

		resp.RespondSuccess(w, r, map[string]any{"downloadUrl": downloadURL})
	}
}
