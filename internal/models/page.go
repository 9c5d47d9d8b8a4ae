package models

// Page is a dynamic page served at a route derived from base_route + slug.
//
// At most one page may be flagged IsRoot; that page is served at "/"
// regardless of its slug. A page with GhostedID set redirects readers to the
// referenced page instead of rendering its own content.
type Page struct {
	Base
	Title           string `json:"title"            gorm:"size:255;not null"`
	Mini            string `json:"mini"             gorm:"size:50"`
	Content         string `json:"content"          gorm:"type:longtext"`
	CustomHead      string `json:"custom_head"      gorm:"type:text"`
	BaseRoute       string `json:"base_route"       gorm:"size:255;not null;default:'/'"`
	Slug            string `json:"slug"             gorm:"size:255;not null"`
	Route           string `json:"route"            gorm:"size:512;uniqueIndex;not null"`
	IsRoot          bool   `json:"is_root"          gorm:"default:false"`
	IsPublished     bool   `json:"is_published"     gorm:"default:false;index"`
	CommentsEnabled bool   `json:"comments_enabled" gorm:"default:false"`
	GhostedID       *uint  `json:"-"                gorm:"index"`
}

func (Page) TableName() string { return "pages" }

// EntityID implements ghost.Entity.
func (p *Page) EntityID() uint { return p.ID }

// GhostTarget implements ghost.Entity.
func (p *Page) GhostTarget() *uint { return p.GhostedID }

// Published implements ghost.Entity.
func (p *Page) Published() bool { return p.IsPublished }

// PublicAddress implements ghost.Entity.
func (p *Page) PublicAddress() string { return p.Route }
