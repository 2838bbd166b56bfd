package models

import (
	"sort"
	"strings"
	"time"
)

// Tag limits applied when a post is written.
const (
	MaxTagsPerPost = 10
	MaxTagLength   = 32
)

// Post represents a shared prompt.
type Post struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	AuthorID       uint      `gorm:"not null;index" json:"authorId"`
	Author         *User     `gorm:"foreignKey:AuthorID;constraint:OnDelete:CASCADE" json:"-"`
	Title          string    `gorm:"size:200;not null" json:"title"`
	Content        string    `gorm:"type:text;not null" json:"content"`
	Model          string    `gorm:"size:64;index" json:"model"`
	Purpose        string    `gorm:"size:64;index" json:"purpose"`
	IsPublic       bool      `gorm:"not null;index" json:"isPublic"`
	LikesCount     int       `gorm:"not null;default:0" json:"likesCount"`
	BookmarksCount int       `gorm:"not null;default:0" json:"bookmarksCount"`
	SharesCount    int       `gorm:"not null;default:0" json:"sharesCount"`
	ViewsCount     int       `gorm:"not null;default:0" json:"viewsCount"`
	TagRows        []PostTag `gorm:"foreignKey:PostID;constraint:OnDelete:CASCADE" json:"-"`
	CreatedAt      time.Time `gorm:"index" json:"createdAt"`
	UpdatedAt      time.Time `gorm:"index" json:"updatedAt"`

	// Derived on read, never persisted on the posts table.
	Tags         []string     `gorm:"-" json:"tags"`
	AuthorInfo   *UserSummary `gorm:"-" json:"author,omitempty"`
	IsLiked      bool         `gorm:"-" json:"isLikedByCurrentUser"`
	IsBookmarked bool         `gorm:"-" json:"isBookmarkedByCurrentUser"`
}

// PostTag stores one tag of a post; (PostID, Tag) is unique.
type PostTag struct {
	ID     uint   `gorm:"primaryKey" json:"-"`
	PostID uint   `gorm:"not null;uniqueIndex:idx_post_tag" json:"-"`
	Tag    string `gorm:"size:32;not null;uniqueIndex:idx_post_tag;index" json:"tag"`
}

// Hydrate fills the derived response fields from loaded associations.
func (p *Post) Hydrate() {
	if p.Author != nil {
		summary := p.Author.Summary()
		p.AuthorInfo = &summary
	}
	if p.TagRows != nil {
		tags := make([]string, 0, len(p.TagRows))
		for _, t := range p.TagRows {
			tags = append(tags, t.Tag)
		}
		sort.Strings(tags)
		p.Tags = tags
	}
	if p.Tags == nil {
		p.Tags = []string{}
	}
}

// NormalizeTags trims, lower-cases and de-duplicates tags, dropping empties.
func NormalizeTags(raw []string) []string {
	seen := make(map[string]struct{}, len(raw))
	out := make([]string, 0, len(raw))
	for _, t := range raw {
		t = strings.ToLower(strings.TrimSpace(t))
		t = strings.TrimPrefix(t, "#")
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}
