// Package backup restores site content from a JSON-lines dump. Each line is
// an envelope {"entity": ..., "data": {...}} as produced by the legacy export
// script. Relations are expressed by natural key (usernames, tag names,
// slugs, routes) and linked in a second pass after every row exists, so the
// dump order does not matter.
package backup

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/kasumi-cms/core/internal/models"
	"github.com/kasumi-cms/core/internal/pkg/slugify"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type record struct {
	Entity string          `json:"entity"`
	Data   json.RawMessage `json:"data"`
}

// dumpBool tolerates the legacy export's numeric booleans (MySQL TINYINT
// serialized as 0/1) alongside real JSON booleans.
type dumpBool bool

func (b *dumpBool) UnmarshalJSON(raw []byte) error {
	switch string(raw) {
	case "true", "1":
		*b = true
	case "false", "0", "null":
		*b = false
	default:
		return fmt.Errorf("invalid boolean %s", raw)
	}
	return nil
}

// dumpTime accepts both RFC 3339 and the legacy export's
// "2006-01-02 15:04:05" layout.
type dumpTime struct{ time.Time }

func (t *dumpTime) UnmarshalJSON(raw []byte) error {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05"} {
		if v, err := time.Parse(layout, s); err == nil {
			t.Time = v
			return nil
		}
	}
	return fmt.Errorf("invalid timestamp %q", s)
}

type userData struct {
	Username    string    `json:"username"`
	Email       string    `json:"email"`
	Password    string    `json:"password"`
	IsActive    *dumpBool `json:"is_active"`
	FirstName   string    `json:"first_name"`
	LastName    string    `json:"last_name"`
	PersonalBio string    `json:"personal_bio"`
	NotifyLogin *dumpBool `json:"notify_login"`
	Roles       []string  `json:"roles"`
}

type pageData struct {
	Title           string    `json:"title"`
	Mini            string    `json:"mini"`
	Content         string    `json:"content"`
	CustomHead      string    `json:"custom_head"`
	BaseRoute       string    `json:"base_route"`
	Slug            string    `json:"slug"`
	Route           string    `json:"route"`
	IsRoot          dumpBool  `json:"is_root"`
	IsPublished     dumpBool  `json:"is_published"`
	CommentsEnabled dumpBool  `json:"comments_enabled"`
	Ghosted         string    `json:"ghosted"`
	Created         *dumpTime `json:"created"`
	LastUpdated     *dumpTime `json:"last_updated"`
}

type postData struct {
	Title           string    `json:"title"`
	Slug            string    `json:"slug"`
	Content         string    `json:"content"`
	IsPublished     dumpBool  `json:"is_published"`
	CommentsEnabled dumpBool  `json:"comments_enabled"`
	Ghosted         string    `json:"ghosted"`
	Tags            []string  `json:"tags"`
	Authors         []string  `json:"authors"`
	Created         *dumpTime `json:"created"`
	LastUpdated     *dumpTime `json:"last_updated"`
}

type tagData struct {
	Name string `json:"name"`
}

type uploadData struct {
	Path        string    `json:"path"`
	Description string    `json:"description"`
	MIME        string    `json:"mime"`
	UploadedAt  *dumpTime `json:"uploaded_at"`
}

type optionData struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Stats summarizes an import run.
type Stats struct {
	Users, Pages, Posts, Tags, Uploads, Options int
	Linked                                      int
	Skipped                                     int
}

// ghostRef is a deferred ghost link: the target is addressed by route
// (pages) or slug (posts) and may appear later in the stream.
type ghostRef struct {
	id  uint
	key string
}

// postRel defers a post's tag and author attachment so the dump may list a
// post before the users it names.
type postRel struct {
	id      uint
	tags    []string
	authors []string
}

type Importer struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewImporter(db *gorm.DB, log *zap.Logger) *Importer {
	return &Importer{db: db, log: log}
}

// Run reads JSON lines from r and restores them inside one transaction.
// The first pass creates rows and attaches roles (seeded at migration, so
// always present); ghost references, post tags and post authors are linked
// in a second pass once every row exists. A reference that still cannot be
// resolved fails the whole import.
func (im *Importer) Run(r io.Reader) (*Stats, error) {
	stats := &Stats{}
	var ghostPages, ghostPosts []ghostRef
	var rels []postRel

	err := im.db.Transaction(func(tx *gorm.DB) error {
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
		line := 0
		for scanner.Scan() {
			line++
			raw := scanner.Bytes()
			if len(raw) == 0 {
				continue
			}
			var rec record
			if err := json.Unmarshal(raw, &rec); err != nil {
				return fmt.Errorf("line %d: %w", line, err)
			}

			var err error
			switch rec.Entity {
			case "user":
				err = im.importUser(tx, rec.Data, stats)
			case "tag":
				err = im.importTag(tx, rec.Data, stats)
			case "page":
				var ref *ghostRef
				ref, err = im.importPage(tx, rec.Data, stats)
				if ref != nil {
					ghostPages = append(ghostPages, *ref)
				}
			case "post":
				var ref *ghostRef
				var rel *postRel
				ref, rel, err = im.importPost(tx, rec.Data, stats)
				if ref != nil {
					ghostPosts = append(ghostPosts, *ref)
				}
				if rel != nil {
					rels = append(rels, *rel)
				}
			case "upload":
				err = im.importUpload(tx, rec.Data, stats)
			case "option":
				err = im.importOption(tx, rec.Data, stats)
			default:
				im.log.Warn("unknown record entity skipped",
					zap.Int("line", line), zap.String("entity", rec.Entity))
				stats.Skipped++
				continue
			}
			if err != nil {
				return fmt.Errorf("line %d (%s): %w", line, rec.Entity, err)
			}
		}
		if err := scanner.Err(); err != nil {
			return err
		}

		if err := im.linkPosts(tx, rels); err != nil {
			return err
		}
		return im.linkGhosts(tx, ghostPages, ghostPosts, stats)
	})
	if err != nil {
		return nil, err
	}
	return stats, nil
}

func (im *Importer) importUser(tx *gorm.DB, raw json.RawMessage, stats *Stats) error {
	var d userData
	if err := json.Unmarshal(raw, &d); err != nil {
		return err
	}
	u := models.User{
		Username:    d.Username,
		Email:       d.Email,
		Password:    d.Password,
		FirstName:   d.FirstName,
		LastName:    d.LastName,
		PersonalBio: d.PersonalBio,
		NotifyLogin: true,
	}
	if d.IsActive != nil {
		u.IsActive = bool(*d.IsActive)
	}
	if d.NotifyLogin != nil {
		u.NotifyLogin = bool(*d.NotifyLogin)
	}
	if err := tx.Create(&u).Error; err != nil {
		return err
	}
	for _, name := range d.Roles {
		if !models.KnownRole(name) {
			return fmt.Errorf("unknown role %q", name)
		}
		var role models.Role
		if err := tx.Where("name = ?", name).First(&role).Error; err != nil {
			return err
		}
		if err := tx.Model(&u).Association("Roles").Append(&role); err != nil {
			return err
		}
	}
	stats.Users++
	return nil
}

func (im *Importer) importTag(tx *gorm.DB, raw json.RawMessage, stats *Stats) error {
	var d tagData
	if err := json.Unmarshal(raw, &d); err != nil {
		return err
	}
	if _, err := getOrCreateTag(tx, d.Name); err != nil {
		return err
	}
	stats.Tags++
	return nil
}

func (im *Importer) importPage(tx *gorm.DB, raw json.RawMessage, stats *Stats) (*ghostRef, error) {
	var d pageData
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, err
	}
	content, ghosted := extractGhostShim(d.Content, d.Ghosted)
	p := models.Page{
		Title:           d.Title,
		Mini:            d.Mini,
		Content:         content,
		CustomHead:      d.CustomHead,
		BaseRoute:       d.BaseRoute,
		Slug:            d.Slug,
		Route:           d.Route,
		IsRoot:          bool(d.IsRoot),
		IsPublished:     bool(d.IsPublished),
		CommentsEnabled: bool(d.CommentsEnabled),
	}
	derivePageAddress(&p)
	applyTimestamps(&p.Base, d.Created, d.LastUpdated)
	if err := tx.Create(&p).Error; err != nil {
		return nil, err
	}
	stats.Pages++
	if ghosted != "" {
		return &ghostRef{id: p.ID, key: ghosted}, nil
	}
	return nil, nil
}

func (im *Importer) importPost(tx *gorm.DB, raw json.RawMessage, stats *Stats) (*ghostRef, *postRel, error) {
	var d postData
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, nil, err
	}
	content, ghosted := extractGhostShim(d.Content, d.Ghosted)
	p := models.Post{
		Title:           d.Title,
		Slug:            d.Slug,
		Content:         content,
		IsPublished:     bool(d.IsPublished),
		CommentsEnabled: bool(d.CommentsEnabled),
	}
	applyTimestamps(&p.Base, d.Created, d.LastUpdated)
	if err := tx.Create(&p).Error; err != nil {
		return nil, nil, err
	}
	stats.Posts++

	var ref *ghostRef
	if ghosted != "" {
		ref = &ghostRef{id: p.ID, key: ghosted}
	}
	var rel *postRel
	if len(d.Tags) > 0 || len(d.Authors) > 0 {
		rel = &postRel{id: p.ID, tags: d.Tags, authors: d.Authors}
	}
	return ref, rel, nil
}

func (im *Importer) importUpload(tx *gorm.DB, raw json.RawMessage, stats *Stats) error {
	var d uploadData
	if err := json.Unmarshal(raw, &d); err != nil {
		return err
	}
	f := models.FileUpload{
		Path:        d.Path,
		Description: d.Description,
		MIME:        d.MIME,
	}
	if d.UploadedAt != nil {
		f.CreatedAt = d.UploadedAt.Time
	}
	if err := tx.Create(&f).Error; err != nil {
		return err
	}
	stats.Uploads++
	return nil
}

func (im *Importer) importOption(tx *gorm.DB, raw json.RawMessage, stats *Stats) error {
	var d optionData
	if err := json.Unmarshal(raw, &d); err != nil {
		return err
	}
	if err := tx.Create(&models.Option{Name: d.Name, Value: d.Value}).Error; err != nil {
		return err
	}
	stats.Options++
	return nil
}

// linkPosts attaches tags and authors now that every user row exists. Tags
// are get-or-create; an author that is in neither the dump nor the database
// rejects the import.
func (im *Importer) linkPosts(tx *gorm.DB, rels []postRel) error {
	for _, rel := range rels {
		p := models.Post{Base: models.Base{ID: rel.id}}
		for _, name := range rel.tags {
			t, err := getOrCreateTag(tx, name)
			if err != nil {
				return err
			}
			if err := tx.Model(&p).Association("Tags").Append(t); err != nil {
				return err
			}
		}
		for _, username := range rel.authors {
			var u models.User
			if err := tx.Where("username = ?", username).First(&u).Error; err != nil {
				return fmt.Errorf("author %q: %w", username, err)
			}
			if err := tx.Model(&p).Association("Authors").Append(&u); err != nil {
				return err
			}
		}
	}
	return nil
}

// linkGhosts resolves deferred ghost references, pages by route and posts by
// slug. A reference that still cannot be resolved fails the whole import; a
// dump is either consistent or rejected.
func (im *Importer) linkGhosts(tx *gorm.DB, pages, posts []ghostRef, stats *Stats) error {
	for _, ref := range pages {
		var target models.Page
		if err := tx.Where("route = ?", ref.key).First(&target).Error; err != nil {
			return fmt.Errorf("ghost target route %q: %w", ref.key, err)
		}
		if err := tx.Model(&models.Page{}).Where("id = ?", ref.id).
			Update("ghosted_id", target.ID).Error; err != nil {
			return err
		}
		stats.Linked++
	}
	for _, ref := range posts {
		var target models.Post
		if err := tx.Where("slug = ?", ref.key).First(&target).Error; err != nil {
			return fmt.Errorf("ghost target slug %q: %w", ref.key, err)
		}
		if err := tx.Model(&models.Post{}).Where("id = ?", ref.id).
			Update("ghosted_id", target.ID).Error; err != nil {
			return err
		}
		stats.Linked++
	}
	return nil
}

// extractGhostShim handles the legacy export's shim: when a row had a ghost
// reference the exporter prefixed the content with "[GHOST: <key>]\n\n"
// instead of filling the ghosted field. The shim is stripped and wins only
// when ghosted itself is empty.
func extractGhostShim(content, ghosted string) (string, string) {
	const prefix = "[GHOST: "
	if ghosted != "" || len(content) <= len(prefix) || content[:len(prefix)] != prefix {
		return content, ghosted
	}
	end := len(prefix)
	for end < len(content) && content[end] != ']' {
		end++
	}
	if end == len(content) {
		return content, ghosted
	}
	key := content[len(prefix):end]
	rest := content[end+1:]
	for len(rest) > 0 && rest[0] == '\n' {
		rest = rest[1:]
	}
	return rest, key
}

// derivePageAddress fills the address fields the legacy export omits: it
// dumps only the full route, so base route and slug are recovered from it.
func derivePageAddress(p *models.Page) {
	if p.Route == "/" {
		p.IsRoot = true
	}
	if p.BaseRoute == "" {
		p.BaseRoute = "/"
	}
	if p.Slug != "" || p.Route == "" {
		return
	}
	if i := lastSlash(p.Route); i >= 0 && i+1 < len(p.Route) {
		p.Slug = p.Route[i+1:]
		if i > 0 {
			p.BaseRoute = p.Route[:i]
		}
	}
	if p.Slug == "" {
		p.Slug = slugify.Make(p.Title, slugify.MaxPageSlug)
	}
}

func lastSlash(s string) int {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == '/' {
			return i
		}
	}
	return -1
}

// applyTimestamps preserves original creation and modification times from
// the dump; zero values let the ORM stamp the import time instead.
func applyTimestamps(b *models.Base, created, modified *dumpTime) {
	if created != nil {
		b.CreatedAt = created.Time
	}
	if modified != nil {
		b.UpdatedAt = modified.Time
	}
}

func getOrCreateTag(tx *gorm.DB, name string) (*models.Tag, error) {
	if name == "" {
		return nil, fmt.Errorf("tag name is required")
	}
	var t models.Tag
	err := tx.Where("name = ?", name).First(&t).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		t = models.Tag{Name: name}
		if err := tx.Create(&t).Error; err != nil {
			return nil, err
		}
		return &t, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}
