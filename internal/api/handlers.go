package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/educatorstribe/tribenews/internal/config"
	"github.com/educatorstribe/tribenews/internal/ingest"
	"github.com/educatorstribe/tribenews/internal/storage"
	"github.com/educatorstribe/tribenews/internal/types"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
	latestLimit     = 10
)

func (s *Server) handleHealth(c *gin.Context) {
	body := gin.H{
		"status":  "ok",
		"version": config.Version,
		"storage": s.store.Name(),
	}
	if s.ingester != nil {
		body["ingest"] = s.ingester.State().String()
	}
	c.JSON(http.StatusOK, body)
}

func (s *Server) handleListArticles(c *gin.Context) {
	page, err := intParam(c, "page", 1)
	if err != nil || page < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "page must be a positive integer"})
		return
	}
	limit, err := intParam(c, "limit", defaultPageSize)
	if err != nil || limit < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
		return
	}
	limit = min(limit, maxPageSize)

	requireImage, err := strconv.ParseBool(c.DefaultQuery("require_image", "false"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "require_image must be a boolean"})
		return
	}

	q := storage.ListQuery{
		Limit:          limit,
		Offset:         (page - 1) * limit,
		RequireImage:   requireImage,
		Domain:         c.Query("domain"),
		MinTitleLength: s.cfg.Ingest.MinTitleLength,
	}

	articles, err := s.store.ListArticles(c.Request.Context(), q)
	if err != nil {
		s.logger.Error("list articles failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list articles"})
		return
	}
	total, err := s.store.CountArticles(c.Request.Context(), q)
	if err != nil {
		s.logger.Error("count articles failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to count articles"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"articles": nonNil(articles),
		"page":     page,
		"limit":    limit,
		"total":    total,
		"pages":    (total + limit - 1) / limit,
	})
}

func (s *Server) handleLatestArticles(c *gin.Context) {
	articles, err := s.store.ListArticles(c.Request.Context(), storage.ListQuery{
		Limit:          latestLimit,
		RequireImage:   true,
		MinTitleLength: s.cfg.Ingest.MinTitleLength,
	})
	if err != nil {
		s.logger.Error("list latest articles failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list articles"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"articles": nonNil(articles)})
}

// handleIngest runs ingestion synchronously and reports how many articles
// were added.
func (s *Server) handleIngest(c *gin.Context) {
	res, err := s.ingester.Run(s.runCtx, ingest.TriggerAdmin)
	switch {
	case errors.Is(err, types.ErrRunInProgress):
		c.JSON(http.StatusConflict, gin.H{"success": false, "error": err.Error()})
		return
	case err != nil:
		s.logger.Error("admin ingestion failed", "error", err)
		body := gin.H{"success": false, "error": err.Error()}
		if res != nil {
			body["run_id"] = res.ID
		}
		c.JSON(http.StatusInternalServerError, body)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":        true,
		"articles_added": res.Added,
		"run_id":         res.ID,
		"backfilled":     res.Backfilled,
		"touched":        res.Touched,
		"duration":       res.Duration.Round(time.Millisecond).String(),
	})
}

func (s *Server) handleLastRun(c *gin.Context) {
	last := s.ingester.LastRun()
	if last == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no run has completed yet"})
		return
	}
	c.JSON(http.StatusOK, last)
}

func intParam(c *gin.Context, name string, def int) (int, error) {
	v := c.Query(name)
	if v == "" {
		return def, nil
	}
	return strconv.Atoi(v)
}

func nonNil(a []*types.Article) []*types.Article {
	if a == nil {
		return []*types.Article{}
	}
	return a
}
