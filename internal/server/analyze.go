package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/franckalain/traypositions/internal/config"
	"github.com/franckalain/traypositions/internal/ingest"
	"github.com/franckalain/traypositions/internal/ml"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const parseFailureDetail = "Failed to parse JSON response"

type analyzeRequest struct {
	ImageURL string `json:"image_url"`
}

// badRequest marks a caller mistake, reported as 400
type badRequest struct{ msg string }

func (e badRequest) Error() string { return e.msg }

func (s *Server) handleAnalyze(c *gin.Context) {
	ctx := c.Request.Context()

	ref, err := s.ingestRequest(c)
	if err != nil {
		s.writeError(c, err)
		return
	}

	resp, err := s.analyzer.Analyze(ctx, ref.String())
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// ingestRequest reads the image from a JSON body or a multipart upload
func (s *Server) ingestRequest(c *gin.Context) (ingest.Reference, error) {
	switch c.ContentType() {
	case gin.MIMEJSON:
		var req analyzeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			return ingest.Reference{}, badRequest{msg: "invalid JSON body: " + err.Error()}
		}
		if req.ImageURL == "" {
			return ingest.Reference{}, badRequest{msg: "image_url is required"}
		}
		return ingest.Direct(req.ImageURL), nil

	case gin.MIMEMultipartPOSTForm:
		if s.opts.Mode == config.ModeURL {
			return ingest.Reference{}, badRequest{msg: "file uploads are disabled; send image_url"}
		}
		fh, err := c.FormFile("file")
		if err != nil {
			return ingest.Reference{}, badRequest{msg: "file is required"}
		}
		f, err := fh.Open()
		if err != nil {
			return ingest.Reference{}, &ingest.IngestError{Op: "open upload", Err: err}
		}
		defer f.Close()

		data, err := io.ReadAll(f)
		if err != nil {
			return ingest.Reference{}, &ingest.IngestError{Op: "read upload", Err: err}
		}
		return s.ingestBytes(c.Request.Context(), fh.Filename, fh.Header.Get("Content-Type"), data)

	default:
		return ingest.Reference{}, badRequest{msg: "expected a JSON body with image_url or a multipart file"}
	}
}

func (s *Server) ingestBytes(ctx context.Context, filename, contentType string, data []byte) (ingest.Reference, error) {
	switch s.opts.Mode {
	case config.ModeRehost:
		if s.rehoster == nil {
			return ingest.Reference{}, fmt.Errorf("rehost mode without storage")
		}
		return s.rehoster.Rehost(ctx, filename, contentType, data)
	case config.ModeBase64:
		return ingest.Inline(data), nil
	default:
		return ingest.Reference{}, badRequest{msg: "image uploads are disabled; send image_url"}
	}
}

// writeError converts any failure into {"detail": ...}
func (s *Server) writeError(c *gin.Context, err error) {
	var br badRequest
	switch {
	case errors.As(err, &br):
		c.JSON(http.StatusBadRequest, gin.H{"detail": br.msg})
	case errors.Is(err, ml.ErrParseResponse):
		c.JSON(http.StatusInternalServerError, gin.H{"detail": parseFailureDetail})
	default:
		s.logger.Error("analysis failed", zap.Error(err), zap.String("path", c.Request.URL.Path))
		c.JSON(http.StatusInternalServerError, gin.H{"detail": errorDetail(err)})
	}
}

func errorDetail(err error) string {
	if errors.Is(err, ml.ErrParseResponse) {
		return parseFailureDetail
	}
	return err.Error()
}
