package controllers

import (
	"net/http"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"

	"github.com/gadar/bestrong/config"
	"github.com/gadar/bestrong/utils"
)

// APKController streams the Android build with resumable-download support.
type APKController struct{}

// NewAPKController creates a new controller instance.
func NewAPKController() *APKController {
	return &APKController{}
}

// Download serves the APK. http.ServeContent handles Range requests, so
// interrupted downloads resume with 206 + Content-Range. Works for HEAD too.
func (a *APKController) Download(ctx *gin.Context) {
	path := config.Get().APKPath

	f, err := os.Open(path)
	if err != nil {
		utils.Error(ctx, http.StatusNotFound, 40490, "apk not available")
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil || info.IsDir() {
		utils.Error(ctx, http.StatusNotFound, 40490, "apk not available")
		return
	}

	ctx.Header("Content-Type", "application/vnd.android.package-archive")
	ctx.Header("Content-Disposition", `attachment; filename="`+filepath.Base(path)+`"`)
	ctx.Header("Accept-Ranges", "bytes")

	http.ServeContent(ctx.Writer, ctx.Request, filepath.Base(path), info.ModTime(), f)
}
