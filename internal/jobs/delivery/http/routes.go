package http

import (
	"github.com/labstack/echo/v4"

	"github.com/amankumarsingh77/batch-image-compressor/internal/jobs"
)

func MapJobsRoutes(jobsGroup *echo.Group, h jobs.Handler) {
	jobsGroup.POST("", h.CreateJob())
	jobsGroup.GET("", h.ListJobs())
	jobsGroup.POST("/:job_id/upload", h.UploadFiles())
	jobsGroup.POST("/:job_id/process", h.StartProcessing())
	jobsGroup.GET("/:job_id/status", h.GetStatus())
	jobsGroup.GET("/:job_id/download", h.Download())
	jobsGroup.GET("/:job_id/archive-url", h.GetArchiveURL())
	jobsGroup.DELETE("/:job_id", h.DeleteJob())
}
