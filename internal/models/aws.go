package models

import "io"

// UploadInput describes an object written to the archive bucket.
type UploadInput struct {
	File       io.Reader `json:"file,omitempty"`
	Name       string    `json:"name" validate:"required"`
	MimeType   string    `json:"mime_type" validate:"required"`
	Size       int64     `json:"size" validate:"gte=0"`
	Key        string    `json:"key" validate:"required"`
	BucketName string    `json:"bucket_name" validate:"required"`
}
