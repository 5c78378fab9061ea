package httpapi

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/ahrav/go-gavel-ratings/internal/application"
	"github.com/ahrav/go-gavel-ratings/internal/domain"
)

// deletedResponse reports how many rows a delete removed.
type deletedResponse struct {
	Deleted int64 `json:"deleted"`
}

// idParam parses the named path parameter as a positive record id.
func idParam(c *gin.Context, name string) (uint, bool) {
	raw := c.Param(name)
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		badRequest(c, "invalid "+name+": "+strconv.Quote(raw))
		return 0, false
	}
	return uint(id), true
}

func (h *handlers) listFaculty(c *gin.Context) {
	all, err := h.svc.Maintenance.ListFaculty(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"faculty": all, "count": len(all)})
}

func (h *handlers) createFaculty(c *gin.Context) {
	var in application.FacultyInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "invalid faculty body: "+err.Error())
		return
	}
	f, err := h.svc.Driver.CreateFaculty(c.Request.Context(), in)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, f)
}

func (h *handlers) getFaculty(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	detail, err := h.svc.Maintenance.FacultyDetail(c.Request.Context(), id)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

func (h *handlers) deleteFaculty(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	res, err := h.svc.Maintenance.DeleteFaculty(c.Request.Context(), id)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// aggregates returns the cached aggregates, or with ?source= the aggregates
// of that source's reviews only.
func (h *handlers) aggregates(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()

	var (
		agg domain.Aggregates
		err error
	)
	if raw := c.Query("source"); raw != "" {
		source, perr := domain.ParseSourceType(raw)
		if perr != nil {
			abortWithError(c, perr)
			return
		}
		agg, err = h.svc.Driver.GetFilteredAggregates(ctx, id, source)
	} else {
		agg, err = h.svc.Driver.GetAggregates(ctx, id)
	}
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, agg)
}

func (h *handlers) searchFaculty(c *gin.Context) {
	found, err := h.svc.Maintenance.SearchFaculty(c.Request.Context(), c.Param("name"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"faculty": found, "count": len(found)})
}

func (h *handlers) combinedReviews(c *gin.Context) {
	view, err := h.svc.Maintenance.CombinedReviews(c.Request.Context(), c.Param("name"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// consolidate merges the records whose stored name equals the normalized
// path name.
func (h *handlers) consolidate(c *gin.Context) {
	res, err := h.svc.Consolidator.Consolidate(c.Request.Context(), domain.NormalizeName(c.Param("name")))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *handlers) consolidateAll(c *gin.Context) {
	results, err := h.svc.Consolidator.ConsolidateAll(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": results, "count": len(results)})
}
