package models

import (
	"io"
	"time"
)

// UploadFile is one multipart part after it has been opened by the handler.
type UploadFile struct {
	Filename string
	Size     int64
	File     io.ReadSeeker
}

type UploadResult struct {
	FilesUploaded int            `json:"filesUploaded"`
	TotalSize     int64          `json:"totalSize"`
	Files         []UploadedFile `json:"files"`
}

// DownloadInfo locates a finished archive on local disk.
type DownloadInfo struct {
	Path     string
	Filename string
}

type JobEvent struct {
	JobID     string    `json:"jobId"`
	Status    JobStatus `json:"status"`
	Progress  int       `json:"progress"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
