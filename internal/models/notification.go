package models

import (
	"fmt"
	"time"
)

// Notification types.
const (
	NotificationLike     = "like"
	NotificationBookmark = "bookmark"
	NotificationFollow   = "follow"
)

// Notification is an in-app notice for UserID about another user's action.
type Notification struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	UserID        uint      `gorm:"not null;index:idx_notifications_user_created" json:"userId"`
	Type          string    `gorm:"size:32;not null" json:"type"`
	Title         string    `gorm:"size:128;not null" json:"title"`
	Message       string    `gorm:"type:text;not null" json:"message"`
	RelatedUserID *uint     `gorm:"index" json:"relatedUserId,omitempty"`
	RelatedPostID *uint     `gorm:"index" json:"relatedPostId,omitempty"`
	Read          bool      `gorm:"not null;default:false" json:"read"`
	CreatedAt     time.Time `gorm:"index:idx_notifications_user_created" json:"createdAt"`

	User        *User `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	RelatedUser *User `gorm:"foreignKey:RelatedUserID;constraint:OnDelete:CASCADE" json:"-"`
	RelatedPost *Post `gorm:"foreignKey:RelatedPostID;constraint:OnDelete:CASCADE" json:"-"`
}

// NewInteractionNotification builds the notification sent to the owner of a
// liked/bookmarked post or to a newly followed user. post is nil for follows.
func NewInteractionNotification(kind InteractionKind, actor *User, recipientID uint, post *Post) *Notification {
	actorID := actor.ID
	n := &Notification{
		UserID:        recipientID,
		RelatedUserID: &actorID,
	}
	name := actor.DisplayName()

	switch kind {
	case InteractionLike:
		n.Type = NotificationLike
		n.Title = "New Like"
		n.Message = fmt.Sprintf("%s liked your prompt %q", name, post.Title)
	case InteractionBookmark:
		n.Type = NotificationBookmark
		n.Title = "New Bookmark"
		n.Message = fmt.Sprintf("%s bookmarked your prompt %q", name, post.Title)
	case InteractionFollow:
		n.Type = NotificationFollow
		n.Title = "New Follower"
		n.Message = fmt.Sprintf("%s started following you", name)
	}
	if post != nil {
		postID := post.ID
		n.RelatedPostID = &postID
	}
	return n
}
