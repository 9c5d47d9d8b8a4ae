// Package reader serves the public site: the root page, dynamic pages by
// route, the blog index and single posts. Ghost entities are resolved here;
// readers follow one redirect hop per request.
package reader

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kasumi-cms/core/internal/models"
	"github.com/kasumi-cms/core/internal/modules/page"
	"github.com/kasumi-cms/core/internal/modules/post"
	"github.com/kasumi-cms/core/internal/modules/settings"
	"github.com/kasumi-cms/core/internal/pkg/ghost"
	"github.com/kasumi-cms/core/internal/pkg/markdown"
	"github.com/kasumi-cms/core/internal/pkg/pagination"
	"github.com/kasumi-cms/core/internal/pkg/response"
	"go.uber.org/zap"
)

type pageView struct {
	Title           string    `json:"title"`
	Mini            string    `json:"mini"`
	Content         string    `json:"content"`
	CustomHead      string    `json:"custom_head,omitempty"`
	Route           string    `json:"route"`
	CommentsEnabled bool      `json:"comments_enabled"`
	Modified        time.Time `json:"modified"`
}

type postView struct {
	Title           string    `json:"title"`
	Slug            string    `json:"slug"`
	Content         string    `json:"content"`
	Tags            []string  `json:"tags"`
	Authors         []string  `json:"authors"`
	CommentsEnabled bool      `json:"comments_enabled"`
	Published       time.Time `json:"published"`
	Modified        time.Time `json:"modified"`
}

type Handler struct {
	pages    *page.Service
	posts    *post.Service
	settings *settings.Service
	log      *zap.Logger
}

func NewHandler(pages *page.Service, posts *post.Service, st *settings.Service, log *zap.Logger) *Handler {
	return &Handler{pages: pages, posts: posts, settings: st, log: log}
}

// RegisterRoutes mounts the public blog endpoints. Dynamic pages cannot live
// on a wildcard route without clashing with the fixed ones, so page serving
// is installed as the router's NoRoute fallback instead.
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/site", h.site)
	r.GET("/blog", h.blogIndex)
	r.GET("/blog/:slug", h.blogPost)
	r.NoRoute(h.servePage)
}

// site exposes the settings a frontend needs to render the chrome around
// the content. Only presentation keys are published here.
func (h *Handler) site(c *gin.Context) {
	out := gin.H{}
	for _, key := range []string{
		settings.OptSiteName,
		settings.OptNavigation,
		settings.OptFooter,
		settings.OptCommentsSiteID,
	} {
		v, err := h.settings.Get(key)
		if err != nil {
			h.log.Error("site settings failed", zap.Error(err))
			response.InternalError(c)
			return
		}
		out[key] = v
	}
	response.OK(c, out)
}

func (h *Handler) blogIndex(c *gin.Context) {
	q := pagination.FromContext(c)
	posts, pag, err := h.posts.ListPublished(q, c.Query("tag"), c.Query("author"))
	if err != nil {
		h.log.Error("blog index failed", zap.Error(err))
		response.InternalError(c)
		return
	}
	items := make([]postView, len(posts))
	for i := range posts {
		v, err := h.toPostView(&posts[i])
		if err != nil {
			h.log.Error("render post failed", zap.Error(err))
			response.InternalError(c)
			return
		}
		items[i] = v
	}
	response.Paged(c, items, pag)
}

func (h *Handler) blogPost(c *gin.Context) {
	p, err := h.posts.GetBySlug(c.Param("slug"))
	if err != nil {
		h.log.Error("get post failed", zap.Error(err))
		response.InternalError(c)
		return
	}
	if p == nil {
		response.NotFound(c)
		return
	}

	res, err := ghost.Resolve(p, h.postLookup)
	if err != nil {
		h.log.Error("resolve post failed", zap.Error(err))
		response.InternalError(c)
		return
	}
	switch res.Kind {
	case ghost.Redirect:
		response.Redirect(c, res.Location)
	case ghost.NotFound:
		response.NotFound(c)
	default:
		v, err := h.toPostView(p)
		if err != nil {
			h.log.Error("render post failed", zap.Error(err))
			response.InternalError(c)
			return
		}
		response.OK(c, v)
	}
}

// servePage handles every path no fixed route claimed. The route column is
// unique, so at most one published page matches.
func (h *Handler) servePage(c *gin.Context) {
	if c.Request.Method != "GET" && c.Request.Method != "HEAD" {
		response.NotFound(c)
		return
	}
	p, err := h.pages.GetByRoute(c.Request.URL.Path)
	if err != nil {
		h.log.Error("get page failed", zap.Error(err))
		response.InternalError(c)
		return
	}
	if p == nil {
		response.NotFound(c)
		return
	}

	res, err := ghost.Resolve(p, h.pageLookup)
	if err != nil {
		h.log.Error("resolve page failed", zap.Error(err))
		response.InternalError(c)
		return
	}
	switch res.Kind {
	case ghost.Redirect:
		response.Redirect(c, res.Location)
	case ghost.NotFound:
		response.NotFound(c)
	default:
		v, err := h.toPageView(p)
		if err != nil {
			h.log.Error("render page failed", zap.Error(err))
			response.InternalError(c)
			return
		}
		response.OK(c, v)
	}
}

func (h *Handler) pageLookup(id uint) (ghost.Entity, error) {
	p, err := h.pages.GetByID(id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, nil
	}
	return p, nil
}

func (h *Handler) postLookup(id uint) (ghost.Entity, error) {
	p, err := h.posts.GetByID(id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, nil
	}
	return p, nil
}

func (h *Handler) toPageView(p *models.Page) (pageView, error) {
	html, err := markdown.Render(p.Content)
	if err != nil {
		return pageView{}, err
	}
	return pageView{
		Title:           p.Title,
		Mini:            p.Mini,
		Content:         html,
		CustomHead:      p.CustomHead,
		Route:           p.Route,
		CommentsEnabled: p.CommentsEnabled,
		Modified:        p.UpdatedAt,
	}, nil
}

func (h *Handler) toPostView(p *models.Post) (postView, error) {
	html, err := markdown.Render(p.Content)
	if err != nil {
		return postView{}, err
	}
	authors := make([]string, len(p.Authors))
	for i := range p.Authors {
		authors[i] = p.Authors[i].DisplayName()
	}
	tags := p.TagNames()
	if tags == nil {
		tags = []string{}
	}
	return postView{
		Title:           p.Title,
		Slug:            p.Slug,
		Content:         html,
		Tags:            tags,
		Authors:         authors,
		CommentsEnabled: p.CommentsEnabled,
		Published:       p.CreatedAt,
		Modified:        p.UpdatedAt,
	}, nil
}
