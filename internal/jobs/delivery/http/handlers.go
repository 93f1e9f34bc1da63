package http

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/amankumarsingh77/batch-image-compressor/internal/jobs"
	"github.com/amankumarsingh77/batch-image-compressor/internal/models"
	"github.com/amankumarsingh77/batch-image-compressor/pkg/httpErrors"
	"github.com/amankumarsingh77/batch-image-compressor/pkg/logger"
	"github.com/amankumarsingh77/batch-image-compressor/pkg/utils"
)

const uploadField = "images"

type jobsHandler struct {
	jobsUC jobs.UseCase
	logger logger.Logger
}

func NewJobsHandler(jobsUC jobs.UseCase, log logger.Logger) jobs.Handler {
	return &jobsHandler{
		jobsUC: jobsUC,
		logger: log,
	}
}

func (h *jobsHandler) CreateJob() echo.HandlerFunc {
	return func(c echo.Context) error {
		job, err := h.jobsUC.CreateJob(c.Request().Context())
		if err != nil {
			return httpErrors.ErrorResponse(c, err)
		}
		return c.JSON(http.StatusCreated, map[string]interface{}{
			"success": true,
			"jobId":   job.ID,
			"message": "Job created successfully",
		})
	}
}

func (h *jobsHandler) UploadFiles() echo.HandlerFunc {
	return func(c echo.Context) error {
		form, err := c.MultipartForm()
		if err != nil {
			return httpErrors.ErrorResponse(c, httpErrors.NewBadRequestError("Invalid multipart payload"))
		}
		headers := form.File[uploadField]

		files := make([]*models.UploadFile, 0, len(headers))
		for _, fh := range headers {
			f, err := fh.Open()
			if err != nil {
				h.logger.Errorf("UploadFiles - open %s error: %v, RequestID: %s", fh.Filename, err, utils.GetRequestID(c))
				return httpErrors.ErrorResponse(c, httpErrors.NewBadRequestError("Could not read uploaded file"))
			}
			defer f.Close()
			files = append(files, &models.UploadFile{Filename: fh.Filename, Size: fh.Size, File: f})
		}

		res, err := h.jobsUC.UploadFiles(c.Request().Context(), c.Param("job_id"), files)
		if err != nil {
			return httpErrors.ErrorResponse(c, err)
		}
		return c.JSON(http.StatusOK, map[string]interface{}{
			"success":       true,
			"filesUploaded": res.FilesUploaded,
			"totalSize":     res.TotalSize,
			"files":         res.Files,
		})
	}
}

func (h *jobsHandler) StartProcessing() echo.HandlerFunc {
	return func(c echo.Context) error {
		settings := &models.ProcessSettings{}
		if err := c.Bind(settings); err != nil {
			return httpErrors.ErrorResponse(c, httpErrors.NewBadRequestError("Invalid request payload"))
		}
		jobID := c.Param("job_id")
		if err := h.jobsUC.StartProcessing(c.Request().Context(), jobID, settings); err != nil {
			return httpErrors.ErrorResponse(c, err)
		}
		return c.JSON(http.StatusAccepted, map[string]interface{}{
			"success": true,
			"message": "Processing started",
			"jobId":   jobID,
		})
	}
}

func (h *jobsHandler) GetStatus() echo.HandlerFunc {
	return func(c echo.Context) error {
		snap, err := h.jobsUC.GetStatus(c.Request().Context(), c.Param("job_id"))
		if err != nil {
			return httpErrors.ErrorResponse(c, err)
		}
		return c.JSON(http.StatusOK, snap)
	}
}

func (h *jobsHandler) Download() echo.HandlerFunc {
	return func(c echo.Context) error {
		info, err := h.jobsUC.GetDownload(c.Request().Context(), c.Param("job_id"))
		if err != nil {
			return httpErrors.ErrorResponse(c, err)
		}
		return c.Attachment(info.Path, info.Filename)
	}
}

func (h *jobsHandler) DeleteJob() echo.HandlerFunc {
	return func(c echo.Context) error {
		if err := h.jobsUC.DeleteJob(c.Request().Context(), c.Param("job_id")); err != nil {
			return httpErrors.ErrorResponse(c, err)
		}
		return c.JSON(http.StatusOK, map[string]interface{}{
			"success": true,
			"message": "Job deleted successfully",
		})
	}
}

func (h *jobsHandler) GetArchiveURL() echo.HandlerFunc {
	return func(c echo.Context) error {
		url, err := h.jobsUC.GetArchiveURL(c.Request().Context(), c.Param("job_id"))
		if err != nil {
			return httpErrors.ErrorResponse(c, err)
		}
		return c.JSON(http.StatusOK, map[string]interface{}{
			"success": true,
			"url":     url,
		})
	}
}

func (h *jobsHandler) ListJobs() echo.HandlerFunc {
	return func(c echo.Context) error {
		pq, err := utils.GetPaginationFromCtx(c)
		if err != nil {
			return httpErrors.ErrorResponse(c, httpErrors.NewBadRequestError(err.Error()))
		}
		list, err := h.jobsUC.ListJobs(c.Request().Context(), pq)
		if err != nil {
			return httpErrors.ErrorResponse(c, err)
		}
		return c.JSON(http.StatusOK, list)
	}
}
