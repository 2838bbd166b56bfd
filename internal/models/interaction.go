package models

import "time"

// Like represents a user's like on a post.
// The combination of UserID and PostID must be unique.
type Like struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_like_user_post" json:"userId"`
	PostID    uint      `gorm:"not null;uniqueIndex:idx_like_user_post;index" json:"postId"`
	CreatedAt time.Time `json:"createdAt"`

	User *User `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Post *Post `gorm:"foreignKey:PostID;constraint:OnDelete:CASCADE" json:"-"`
}

// Bookmark represents a post saved by a user.
type Bookmark struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_bookmark_user_post" json:"userId"`
	PostID    uint      `gorm:"not null;uniqueIndex:idx_bookmark_user_post;index" json:"postId"`
	CreatedAt time.Time `json:"createdAt"`

	User *User `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Post *Post `gorm:"foreignKey:PostID;constraint:OnDelete:CASCADE" json:"post,omitempty"`
}

// Follow is a directed edge from follower to followed user.
type Follow struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	FollowerID  uint      `gorm:"not null;uniqueIndex:idx_follow_pair" json:"followerId"`
	FollowingID uint      `gorm:"not null;uniqueIndex:idx_follow_pair;index" json:"followingId"`
	CreatedAt   time.Time `json:"createdAt"`

	Follower  *User `gorm:"foreignKey:FollowerID;constraint:OnDelete:CASCADE" json:"-"`
	Following *User `gorm:"foreignKey:FollowingID;constraint:OnDelete:CASCADE" json:"-"`
}

// Share is an append-only share event.
type Share struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;index" json:"userId"`
	PostID    uint      `gorm:"not null;index" json:"postId"`
	Platform  string    `gorm:"size:32" json:"platform"`
	CreatedAt time.Time `json:"createdAt"`

	User *User `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Post *Post `gorm:"foreignKey:PostID;constraint:OnDelete:CASCADE" json:"-"`
}

// View is an append-only view event. Anonymous views carry the anonymous visitor's id.
type View struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	PostID    uint      `gorm:"not null;index" json:"postId"`
	UserID    uint      `gorm:"not null;index" json:"userId"`
	CreatedAt time.Time `json:"createdAt"`

	User *User `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Post *Post `gorm:"foreignKey:PostID;constraint:OnDelete:CASCADE" json:"-"`
}

// InteractionKind names a toggle relation.
type InteractionKind string

const (
	InteractionLike     InteractionKind = "like"
	InteractionBookmark InteractionKind = "bookmark"
	InteractionFollow   InteractionKind = "follow"
)

// ToggleSpec describes how a toggle relation is stored.
type ToggleSpec struct {
	Kind InteractionKind
	// Table holds the relation rows.
	Table string
	// ActorColumn and TargetColumn form the compound unique key.
	ActorColumn  string
	TargetColumn string
	// CounterColumn on posts mirrors the relation cardinality; empty for follows.
	CounterColumn string
	// ConflictIndex lists the unique key columns for ON CONFLICT.
	ConflictIndex []string
}

// ToggleSpecs is the registry of toggle relations.
var ToggleSpecs = map[InteractionKind]ToggleSpec{
	InteractionLike: {
		Kind:          InteractionLike,
		Table:         "likes",
		ActorColumn:   "user_id",
		TargetColumn:  "post_id",
		CounterColumn: "likes_count",
		ConflictIndex: []string{"user_id", "post_id"},
	},
	InteractionBookmark: {
		Kind:          InteractionBookmark,
		Table:         "bookmarks",
		ActorColumn:   "user_id",
		TargetColumn:  "post_id",
		CounterColumn: "bookmarks_count",
		ConflictIndex: []string{"user_id", "post_id"},
	},
	InteractionFollow: {
		Kind:          InteractionFollow,
		Table:         "follows",
		ActorColumn:   "follower_id",
		TargetColumn:  "following_id",
		ConflictIndex: []string{"follower_id", "following_id"},
	},
}

// NewRelation builds the relation row for kind.
func NewRelation(kind InteractionKind, actorID, targetID uint) interface{} {
	switch kind {
	case InteractionLike:
		return &Like{UserID: actorID, PostID: targetID}
	case InteractionBookmark:
		return &Bookmark{UserID: actorID, PostID: targetID}
	case InteractionFollow:
		return &Follow{FollowerID: actorID, FollowingID: targetID}
	default:
		return nil
	}
}
