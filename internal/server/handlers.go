package server

import (
	"errors"
	"io/fs"
	"net/http"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"filenav/internal/logging"
	"filenav/internal/metrics"
)

func (s *Server) handleIndex(c *gin.Context) {
	logger := logging.FromContext(c, s.logger)
	requested := c.Query("dir")

	absolutePath, err := s.resolveDir(requested)
	if err != nil {
		logger.Debug("falling back to root",
			zap.String("dir", requested),
			zap.Error(err),
		)
		metrics.RecordPathFallback()
		absolutePath = s.resolver.root
	}
	current := s.resolver.relative(absolutePath)

	entries, err := s.listEntries(absolutePath, logger)
	if err != nil {
		s.respondError(c, err)
		return
	}
	metrics.RecordListing(entries.len())

	c.HTML(http.StatusOK, "index", buildIndexPage(current, entries))
}

// resolveDir resolves requested to a directory below the root. Hidden
// directories are refused unless they are shown.
func (s *Server) resolveDir(requested string) (string, error) {
	absolutePath, err := s.resolver.resolve(requested)
	if err != nil {
		return "", err
	}

	if !s.showHidden && hasHiddenSegment(s.resolver.relative(absolutePath)) {
		return "", errPathNotExist
	}

	info, err := os.Stat(absolutePath)
	if err != nil {
		return "", err
	}

	if !info.IsDir() {
		return "", errPathNotExist
	}

	return absolutePath, nil
}

func (s *Server) serveStaticFile(c *gin.Context) {
	if c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead {
		metrics.RecordFileServed(http.StatusMethodNotAllowed)
		s.respondError(c, errMethodNotAllowed)
		return
	}

	absolutePath, err := s.resolveFile(strings.TrimPrefix(c.Request.URL.Path, "/"))
	if err != nil {
		logging.FromContext(c, s.logger).Debug("file not served",
			zap.String("path", c.Request.URL.Path),
			zap.Error(err),
		)
		metrics.RecordFileServed(http.StatusNotFound)
		c.AbortWithStatus(http.StatusNotFound)
		return
	}

	f, err := os.Open(absolutePath)
	if err != nil {
		err = openError(err)
		metrics.RecordFileServed(errorStatus(err))
		s.respondError(c, err)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		metrics.RecordFileServed(errorStatus(err))
		s.respondError(c, err)
		return
	}

	metrics.RecordFileServed(http.StatusOK)
	// Not c.File: ServeFile redirects paths ending in index.html.
	http.ServeContent(c.Writer, c.Request, info.Name(), info.ModTime(), f)
}

func openError(err error) error {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return errPathNotExist
	case errors.Is(err, fs.ErrPermission):
		return errForbidden
	}

	return err
}

// resolveFile resolves requested to a regular, listable file below the root.
// Unlike directory requests there is no fallback: any rejection is an error.
func (s *Server) resolveFile(requested string) (string, error) {
	if strings.TrimSpace(requested) == "" {
		return "", errPathNotExist
	}

	absolutePath, err := s.resolver.resolve(requested)
	if err != nil {
		return "", err
	}

	relative := s.resolver.relative(absolutePath)
	if relative == "" {
		return "", errPathNotExist
	}

	if !s.showHidden && hasHiddenSegment(relative) {
		return "", errPathNotExist
	}

	info, err := os.Stat(absolutePath)
	if err != nil {
		return "", err
	}

	if info.IsDir() || !s.isAllowedExtension(info.Name()) {
		return "", errPathNotExist
	}

	return absolutePath, nil
}

func hasHiddenSegment(relative string) bool {
	for _, segment := range strings.Split(relative, "/") {
		if isHidden(segment) {
			return true
		}
	}

	return false
}

// errorStatus is the status respondError answers err with.
func errorStatus(err error) int {
	var httpErr *httpError
	if errors.As(err, &httpErr) {
		return httpErr.Status
	}

	return http.StatusInternalServerError
}

func (s *Server) respondError(c *gin.Context, err error) {
	logger := logging.FromContext(c, s.logger)
	if err == nil {
		c.AbortWithStatus(http.StatusInternalServerError)
		return
	}

	var httpErr *httpError
	if errors.As(err, &httpErr) {
		if httpErr.Status >= http.StatusInternalServerError {
			logger.Error("server error", zap.Error(err))
		}

		c.String(httpErr.Status, httpErr.Message)
		return
	}

	logger.Error("unexpected error", zap.Error(err))
	c.String(http.StatusInternalServerError, "internal server error")
}
