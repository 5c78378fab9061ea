package httpapi

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ahrav/go-gavel-ratings/internal/application"
	"github.com/ahrav/go-gavel-ratings/internal/ports"
)

// analyzeTextRequest is the body of POST /api/analyze/text. CourseCodes is
// a comma separated list.
type analyzeTextRequest struct {
	FacultyName string `json:"faculty_name"`
	CourseCodes string `json:"course_codes"`
	Text        string `json:"text"`
}

// analyzer returns the configured analyzer or answers 503.
func (h *handlers) analyzer(c *gin.Context) (*application.Analyzer, bool) {
	if h.svc.Analyzer == nil {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, errorResponse{
			Error:   true,
			Message: "analysis is not configured",
		})
		return nil, false
	}
	return h.svc.Analyzer, true
}

func (h *handlers) analyzeText(c *gin.Context) {
	a, ok := h.analyzer(c)
	if !ok {
		return
	}
	var body analyzeTextRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "invalid analysis body: "+err.Error())
		return
	}

	res, err := a.AnalyzeText(c.Request.Context(), application.AnalysisRequest{
		FacultyName: body.FacultyName,
		CourseCodes: application.ParseCourseCodes(body.CourseCodes),
		Text:        body.Text,
	})
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

// analyzeScreenshots reads a multipart form with faculty_name, one or more
// course_codes values and the screenshots under images.
func (h *handlers) analyzeScreenshots(c *gin.Context) {
	a, ok := h.analyzer(c)
	if !ok {
		return
	}
	form, err := c.MultipartForm()
	if err != nil {
		badRequest(c, "expected multipart form: "+err.Error())
		return
	}

	images := make([]ports.Image, 0, len(form.File["images"]))
	for _, fh := range form.File["images"] {
		img, err := readImage(fh)
		if err != nil {
			badRequest(c, err.Error())
			return
		}
		images = append(images, img)
	}

	res, err := a.AnalyzeScreenshots(c.Request.Context(), application.AnalysisRequest{
		FacultyName: c.PostForm("faculty_name"),
		CourseCodes: application.ParseCourseCodes(strings.Join(c.PostFormArray("course_codes"), ",")),
		Images:      images,
	})
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

func readImage(fh *multipart.FileHeader) (ports.Image, error) {
	f, err := fh.Open()
	if err != nil {
		return ports.Image{}, fmt.Errorf("open %s: %w", fh.Filename, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return ports.Image{}, fmt.Errorf("read %s: %w", fh.Filename, err)
	}
	return ports.Image{
		Data:     data,
		MIMEType: fh.Header.Get("Content-Type"),
		Name:     fh.Filename,
	}, nil
}
