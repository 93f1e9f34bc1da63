package jobs

import "github.com/labstack/echo/v4"

type Handler interface {
	CreateJob() echo.HandlerFunc
	UploadFiles() echo.HandlerFunc
	StartProcessing() echo.HandlerFunc
	GetStatus() echo.HandlerFunc
	Download() echo.HandlerFunc
	DeleteJob() echo.HandlerFunc
	GetArchiveURL() echo.HandlerFunc
	ListJobs() echo.HandlerFunc
}
