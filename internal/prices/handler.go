// Package prices exposes the dashboard's JSON API: the filtered price-change
// listing, per-item history analytics and the item id index.
package prices

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jackmoore7/coles-web-app/internal/cache"
	"github.com/jackmoore7/coles-web-app/internal/errx"
	"github.com/jackmoore7/coles-web-app/internal/history"
	"github.com/jackmoore7/coles-web-app/internal/logging"
	"github.com/jackmoore7/coles-web-app/internal/query"
	"github.com/jackmoore7/coles-web-app/internal/store"
)

const maxPerPage = 100

type Handler struct {
	repo           store.Reader
	cache          *cache.Cache
	defaultPerPage int
}

func NewHandler(repo store.Reader, snapshots *cache.Cache, defaultPerPage int) *Handler {
	if defaultPerPage < 1 {
		defaultPerPage = 20
	}
	return &Handler{repo: repo, cache: snapshots, defaultPerPage: defaultPerPage}
}

// Register mounts the API routes on the (gated) group.
func (h *Handler) Register(api *gin.RouterGroup) {
	api.GET("/price-changes", h.ListPriceChanges)
	api.GET("/items", h.ListItems)
	api.GET("/items/:id/history", h.GetItemHistory)
}

// ListPriceChanges serves one page of the filtered, sorted record set from
// the snapshot cache.
func (h *Handler) ListPriceChanges(c *gin.Context) {
	snap, err := h.cache.Get(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}

	res := query.Run(snap, query.Params{
		Search:     c.Query("search"),
		DateFilter: c.Query("date"),
		Location:   parseTimezone(c.Query("tz")),
		SortKey:    c.Query("sort"),
		Page:       intQuery(c, "page", 1),
		PerPage:    clampPerPage(intQuery(c, "per_page", h.defaultPerPage)),
	})
	c.JSON(http.StatusOK, res)
}

// GetItemHistory serves the analytics for one item's full history. A
// non-numeric or unknown id is a 404, which feeds the abuse gate's
// not-found accounting.
func (h *Handler) GetItemHistory(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		abortWithError(c, errx.NotFound(err))
		return
	}

	records, err := h.repo.FindByItem(c.Request.Context(), id)
	if err != nil {
		abortWithError(c, errx.Upstream(err))
		return
	}

	hist, err := history.Analyze(id, records)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, hist)
}

// ListItems enumerates every known item id.
func (h *Handler) ListItems(c *gin.Context) {
	ids, err := h.repo.DistinctItemIDs(c.Request.Context())
	if err != nil {
		abortWithError(c, errx.Upstream(err))
		return
	}
	if ids == nil {
		ids = []int64{}
	}
	c.JSON(http.StatusOK, gin.H{"item_ids": ids})
}

func abortWithError(c *gin.Context, err error) {
	var ae *errx.AppError
	if errors.As(err, &ae) {
		c.JSON(ae.Status, gin.H{"error": ae.Message})
		return
	}
	logging.Error().Err(err).Str("path", c.FullPath()).Msg("unhandled error")
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
}

// parseTimezone resolves the caller's tz query parameter; anything
// unparseable degrades to UTC rather than failing the request.
func parseTimezone(name string) *time.Location {
	if name == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}

func intQuery(c *gin.Context, key string, def int) int {
	v := c.Query(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return def
	}
	return n
}

func clampPerPage(n int) int {
	if n > maxPerPage {
		return maxPerPage
	}
	return n
}
