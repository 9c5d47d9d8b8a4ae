package models

// Post is a blog post written in markdown.
//
// Authors and tags are many-to-many. A post always has at least one author:
// the creating user is added to the set even when the submitted author list
// omits them. GhostedID works exactly like Page.GhostedID.
type Post struct {
	Base
	Title           string `json:"title"            gorm:"size:255;not null"`
	Slug            string `json:"slug"             gorm:"size:512;uniqueIndex;not null"`
	Content         string `json:"content"          gorm:"type:longtext"`
	IsPublished     bool   `json:"is_published"     gorm:"default:false;index"`
	CommentsEnabled bool   `json:"comments_enabled" gorm:"default:false"`
	GhostedID       *uint  `json:"-"                gorm:"index"`

	Tags    []Tag  `json:"tags,omitempty"    gorm:"many2many:post_tags"`
	Authors []User `json:"authors,omitempty" gorm:"many2many:user_posts"`
}

func (Post) TableName() string { return "posts" }

// TagNames returns the post's tag names in load order.
func (p *Post) TagNames() []string {
	names := make([]string, len(p.Tags))
	for i, t := range p.Tags {
		names[i] = t.Name
	}
	return names
}

// HasAuthor reports whether the given user is in the author set.
func (p *Post) HasAuthor(userID uint) bool {
	for _, a := range p.Authors {
		if a.ID == userID {
			return true
		}
	}
	return false
}

// EntityID implements ghost.Entity.
func (p *Post) EntityID() uint { return p.ID }

// GhostTarget implements ghost.Entity.
func (p *Post) GhostTarget() *uint { return p.GhostedID }

// Published implements ghost.Entity.
func (p *Post) Published() bool { return p.IsPublished }

// PublicAddress implements ghost.Entity.
func (p *Post) PublicAddress() string { return "/blog/" + p.Slug }
