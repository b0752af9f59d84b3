package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/user/linkshortener/internal/models"
	"github.com/user/linkshortener/internal/service"
)

// LinkHandler handles redirects and link administration.
type LinkHandler struct {
	links  *service.LinkService
	logger *slog.Logger
}

// NewLinkHandler creates a new link handler.
func NewLinkHandler(links *service.LinkService, logger *slog.Logger) *LinkHandler {
	return &LinkHandler{links: links, logger: logger}
}

// ===========================================
// GET /:shortCode
// ===========================================
// 302 to the destination. Missing and disabled links are both 404.
// The click is recorded in the background either way.
//
// 302 rather than 301 so browsers come back and every visit counts.
func (h *LinkHandler) Redirect(c *gin.Context) {
	link, err := h.links.Redirect(c.Request.Context(), c.Param("shortCode"),
		optional(c.ClientIP()), optional(c.Request.UserAgent()))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.Redirect(http.StatusFound, link.OriginalURL)
}

// ===========================================
// POST /api/links
// ===========================================
// Request:
//
//	{
//	  "url": "https://github.com",
//	  "short_code": "gh"   // optional
//	}
//
// Response (201): the link with its short_url.
func (h *LinkHandler) Create(c *gin.Context) {
	var req models.CreateLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}

	link, err := h.links.Create(c.Request.Context(), service.CreateLinkInput{
		OriginalURL: req.URL,
		ShortCode:   req.ShortCode,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, h.response(link))
}

// ===========================================
// GET /api/links?active=true&limit=50&offset=0
// ===========================================
func (h *LinkHandler) List(c *gin.Context) {
	var (
		opts models.ListLinksOptions
		err  error
	)
	if v := c.Query("active"); v != "" {
		if opts.ActiveOnly, err = strconv.ParseBool(v); err != nil {
			badRequest(c, "Invalid active flag", err)
			return
		}
	}
	if opts.Limit, err = queryInt(c, "limit", 0); err != nil {
		badRequest(c, "Invalid limit", err)
		return
	}
	if opts.Offset, err = queryInt(c, "offset", 0); err != nil {
		badRequest(c, "Invalid offset", err)
		return
	}

	links, applied, err := h.links.List(c.Request.Context(), opts)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	resp := models.LinkListResponse{
		Links:  make([]models.LinkResponse, 0, len(links)),
		Limit:  applied.Limit,
		Offset: applied.Offset,
	}
	for i := range links {
		resp.Links = append(resp.Links, h.response(&links[i]))
	}
	c.JSON(http.StatusOK, resp)
}

// Get handles GET /api/links/:id.
func (h *LinkHandler) Get(c *gin.Context) {
	id, ok := linkID(c)
	if !ok {
		return
	}

	link, err := h.links.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, h.response(link))
}

// Update handles PATCH /api/links/:id with {"url": "..."}.
func (h *LinkHandler) Update(c *gin.Context) {
	id, ok := linkID(c)
	if !ok {
		return
	}

	var req models.UpdateLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}

	link, err := h.links.UpdateURL(c.Request.Context(), id, req.URL)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, h.response(link))
}

// Disable handles POST /api/links/:id/disable.
func (h *LinkHandler) Disable(c *gin.Context) {
	h.setActive(c, false)
}

// Enable handles POST /api/links/:id/enable.
func (h *LinkHandler) Enable(c *gin.Context) {
	h.setActive(c, true)
}

func (h *LinkHandler) setActive(c *gin.Context, active bool) {
	id, ok := linkID(c)
	if !ok {
		return
	}

	var (
		link *models.Link
		err  error
	)
	if active {
		link, err = h.links.Enable(c.Request.Context(), id)
	} else {
		link, err = h.links.Disable(c.Request.Context(), id)
	}
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, h.response(link))
}

// Delete handles DELETE /api/links/:id. The link's click history goes
// with it. 204 on success.
func (h *LinkHandler) Delete(c *gin.Context) {
	id, ok := linkID(c)
	if !ok {
		return
	}

	if err := h.links.Delete(c.Request.Context(), id); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *LinkHandler) response(link *models.Link) models.LinkResponse {
	return models.LinkResponse{Link: *link, ShortURL: h.links.ShortURL(link)}
}

// optional maps an empty header value to absent.
func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func queryInt(c *gin.Context, key string, def int) (int, error) {
	v := c.Query(key)
	if v == "" {
		return def, nil
	}
	return strconv.Atoi(v)
}
