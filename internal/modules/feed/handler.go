// Package feed serves the RSS 2.0 feed of the latest published posts.
package feed

import (
	"encoding/xml"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kasumi-cms/core/internal/modules/post"
	"github.com/kasumi-cms/core/internal/modules/settings"
	"github.com/kasumi-cms/core/internal/pkg/markdown"
	"github.com/kasumi-cms/core/internal/pkg/response"
	"go.uber.org/zap"
)

// FeedSize is how many posts the feed carries.
const FeedSize = 15

type rss struct {
	XMLName xml.Name `xml:"rss"`
	Version string   `xml:"version,attr"`
	Channel channel  `xml:"channel"`
}

type channel struct {
	Title         string `xml:"title"`
	Link          string `xml:"link"`
	Description   string `xml:"description"`
	LastBuildDate string `xml:"lastBuildDate,omitempty"`
	Items         []item `xml:"item"`
}

type item struct {
	Title       string `xml:"title"`
	Link        string `xml:"link"`
	GUID        string `xml:"guid"`
	Description string `xml:"description"`
	Author      string `xml:"author,omitempty"`
	PubDate     string `xml:"pubDate"`
}

type Handler struct {
	posts    *post.Service
	settings *settings.Service
	log      *zap.Logger
}

func NewHandler(posts *post.Service, st *settings.Service, log *zap.Logger) *Handler {
	return &Handler{posts: posts, settings: st, log: log}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/feed.xml", h.serve)
}

func (h *Handler) serve(c *gin.Context) {
	posts, err := h.posts.Latest(FeedSize)
	if err != nil {
		h.log.Error("feed query failed", zap.Error(err))
		response.InternalError(c)
		return
	}

	title, err := h.settings.Get(settings.OptFeedTitle)
	if err != nil {
		h.log.Error("feed settings failed", zap.Error(err))
		response.InternalError(c)
		return
	}
	description, _ := h.settings.Get(settings.OptFeedDescription)
	siteURL, _ := h.settings.Get(settings.OptSiteURL)
	siteURL = strings.TrimRight(siteURL, "/")

	doc := rss{
		Version: "2.0",
		Channel: channel{
			Title:       title,
			Link:        siteURL,
			Description: description,
		},
	}
	if len(posts) > 0 {
		doc.Channel.LastBuildDate = posts[0].UpdatedAt.Format(time.RFC1123Z)
	}

	for i := range posts {
		p := &posts[i]
		html, err := markdown.Render(p.Content)
		if err != nil {
			h.log.Error("feed render failed", zap.Error(err))
			response.InternalError(c)
			return
		}
		authors := make([]string, len(p.Authors))
		for j := range p.Authors {
			authors[j] = p.Authors[j].DisplayName()
		}
		link := siteURL + p.PublicAddress()
		doc.Channel.Items = append(doc.Channel.Items, item{
			Title:       p.Title,
			Link:        link,
			GUID:        link,
			Description: html,
			Author:      strings.Join(authors, ", "),
			PubDate:     p.CreatedAt.Format(time.RFC1123Z),
		})
	}

	out, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		h.log.Error("feed marshal failed", zap.Error(err))
		response.InternalError(c)
		return
	}
	c.Data(http.StatusOK, "application/rss+xml; charset=utf-8", append([]byte(xml.Header), out...))
}
