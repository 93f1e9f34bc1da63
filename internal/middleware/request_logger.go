package middleware

import (
	"time"

	"github.com/labstack/echo/v4"

	"github.com/amankumarsingh77/batch-image-compressor/pkg/utils"
)

// RequestLoggerMiddleware logs one line per request.
func (mw *MiddlewareManager) RequestLoggerMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)
		if err != nil {
			c.Error(err)
		}

		req := c.Request()
		res := c.Response()
		mw.logger.Infof("RequestID: %s, Method: %s, URI: %s, Status: %v, Size: %v, Time: %s",
			utils.GetRequestID(c), req.Method, req.URL.String(), res.Status, res.Size, time.Since(start))
		return nil
	}
}
