package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ahrav/go-gavel-ratings/internal/application"
)

// createReview stores a review for the faculty in the path. The body's
// faculty_id, if any, is ignored.
func (h *handlers) createReview(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var in application.ReviewInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "invalid review body: "+err.Error())
		return
	}
	in.FacultyID = id

	review, err := h.svc.Driver.CreateReview(c.Request.Context(), in)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, review)
}

func (h *handlers) deleteReview(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if err := h.svc.Driver.DeleteReview(c.Request.Context(), id); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, deletedResponse{Deleted: 1})
}

func (h *handlers) deleteFacultyReviews(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	n, err := h.svc.Driver.DeleteReviewsForFaculty(c.Request.Context(), id)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, deletedResponse{Deleted: n})
}

func (h *handlers) deleteFacultyCourseReviews(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	n, err := h.svc.Driver.DeleteReviewsForFacultyCourse(c.Request.Context(), id, c.Param("course"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, deletedResponse{Deleted: n})
}

func (h *handlers) deleteCourseReviews(c *gin.Context) {
	n, err := h.svc.Driver.DeleteReviewsForCourse(c.Request.Context(), c.Param("course"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, deletedResponse{Deleted: n})
}

func (h *handlers) clearReviews(c *gin.Context) {
	res, err := h.svc.Maintenance.ClearAllReviews(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
