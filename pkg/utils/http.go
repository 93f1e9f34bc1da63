package utils

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/labstack/echo/v4"
)

var unsafeFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9.-]`)

func GetRequestID(c echo.Context) string {
	return c.Response().Header().Get(echo.HeaderXRequestID)
}

func GetIPAddress(c echo.Context) string {
	return c.RealIP()
}

// SanitizeFilename keeps the base name of a client supplied filename and
// replaces anything outside [a-zA-Z0-9.-] with an underscore. Leading dots are
// replaced too so uploads can never become hidden files.
func SanitizeFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, `\`, "/"))
	name = unsafeFilenameChars.ReplaceAllString(name, "_")
	if strings.HasPrefix(name, ".") {
		name = "_" + strings.TrimLeft(name, ".")
	}
	if name == "_" || name == "" {
		return "file"
	}
	return name
}
