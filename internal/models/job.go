package models

import (
	"math"
	"time"
)

type JobStatus string

const (
	JobStatusCreated    JobStatus = "created"
	JobStatusUploading  JobStatus = "uploading"
	JobStatusUploaded   JobStatus = "uploaded"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// validTransitions is the forward lifecycle. Failure is handled separately:
// any non-terminal status may move to failed.
var validTransitions = map[JobStatus]JobStatus{
	JobStatusCreated:    JobStatusUploading,
	JobStatusUploading:  JobStatusUploaded,
	JobStatusUploaded:   JobStatusProcessing,
	JobStatusProcessing: JobStatusCompleted,
}

// IsTerminal reports whether no further transition is possible.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// CanTransitionTo reports whether next is the legal successor of s.
func (s JobStatus) CanTransitionTo(next JobStatus) bool {
	if s.IsTerminal() {
		return false
	}
	if next == JobStatusFailed {
		return true
	}
	return validTransitions[s] == next
}

type UploadedFile struct {
	Filename string `json:"filename"`
	Size     int64  `json:"size"`
}

type ProcessedFile struct {
	Filename       string `json:"filename"`
	OriginalSize   int64  `json:"originalSize"`
	CompressedSize int64  `json:"compressedSize"`
	Reduction      int    `json:"reduction"`
}

// Job is the in-memory record of one batch. Only the registry mutates it.
type Job struct {
	ID             string           `json:"id"`
	Status         JobStatus        `json:"status"`
	UploadedFiles  []UploadedFile   `json:"uploadedFiles"`
	ProcessedFiles []ProcessedFile  `json:"processedFiles"`
	Settings       *ProcessSettings `json:"settings,omitempty"`
	Progress       int              `json:"progress"`
	TotalFiles     int              `json:"totalFiles"`
	ProcessedCount int              `json:"processedCount"`
	OriginalSize   int64            `json:"originalSize"`
	CompressedSize int64            `json:"compressedSize"`
	Summary        *BatchSummary    `json:"summary,omitempty"`
	Error          string           `json:"error,omitempty"`
	CreatedAt      time.Time        `json:"createdAt"`
	UpdatedAt      time.Time        `json:"updatedAt"`
}

// Clone returns a deep copy safe to hand out of the registry.
func (j *Job) Clone() *Job {
	c := *j
	c.UploadedFiles = append([]UploadedFile(nil), j.UploadedFiles...)
	c.ProcessedFiles = append([]ProcessedFile(nil), j.ProcessedFiles...)
	if j.Settings != nil {
		s := j.Settings.Clone()
		c.Settings = &s
	}
	if j.Summary != nil {
		sum := *j.Summary
		c.Summary = &sum
	}
	return &c
}

// JobSnapshot is the read-only projection returned to status queries.
//
// OriginalSize covers every upload. Reduction compares CompressedSize with
// ProcessedOriginalSize, the originals of the files that produced output.
type JobSnapshot struct {
	ID                    string        `json:"id"`
	Status                JobStatus     `json:"status"`
	Progress              int           `json:"progress"`
	TotalFiles            int           `json:"totalFiles"`
	ProcessedCount        int           `json:"processedCount"`
	OriginalSize          int64         `json:"originalSize"`
	ProcessedOriginalSize int64         `json:"processedOriginalSize"`
	CompressedSize        int64         `json:"compressedSize"`
	Reduction             int           `json:"reduction"`
	Summary               *BatchSummary `json:"summary,omitempty"`
	CreatedAt             time.Time     `json:"createdAt"`
	Error                 string        `json:"error,omitempty"`
}

// BatchSummary aggregates one pipeline run.
type BatchSummary struct {
	Total               int   `json:"total"`
	Successful          int   `json:"successful"`
	Failed              int   `json:"failed"`
	TotalOriginalSize   int64 `json:"totalOriginalSize"`
	TotalCompressedSize int64 `json:"totalCompressedSize"`
	TotalReduction      int   `json:"totalReduction"`
}

// Metadata is persisted next to the job directories; its mtime is the age
// signal used by disk cleanup.
type Metadata struct {
	CreatedAt  time.Time `json:"createdAt"`
	UploadedAt time.Time `json:"uploadedAt,omitempty"`
	FileCount  int       `json:"fileCount"`
	TotalSize  int64     `json:"totalSize"`
}

// ReductionPercent returns round((original-compressed)/original*100), or 0
// when original is 0.
func ReductionPercent(original, compressed int64) int {
	if original <= 0 {
		return 0
	}
	return int(math.Round(float64(original-compressed) / float64(original) * 100))
}

type JobList struct {
	Jobs       []*JobSnapshot `json:"jobs"`
	TotalCount int            `json:"totalCount"`
	Page       int            `json:"page"`
	PageSize   int            `json:"pageSize"`
	HasMore    bool           `json:"hasMore"`
}
