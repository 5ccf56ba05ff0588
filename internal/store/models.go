package store

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Roles assignable to a user account.
const (
	RoleUser  = "USER"
	RoleAdmin = "ADMIN"
)

// User is an application account. PasswordHash is empty for accounts
// provisioned through Google sign-in.
type User struct {
	ID           string `gorm:"primaryKey"`
	Email        string `gorm:"uniqueIndex;not null"`
	Name         string `gorm:"not null"`
	PasswordHash string `gorm:"not null;default:''"`
	Role         string `gorm:"type:varchar(20);not null;default:'USER'"`
	ProfileImage *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (User) TableName() string {
	return "users"
}

// BeforeCreate assigns a UUID when the caller did not provide one.
func (user *User) BeforeCreate(tx *gorm.DB) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	return nil
}

// RefreshToken holds the single live refresh token for a user. The unique
// index on UserID makes "one active token per user" a database invariant
// rather than a delete-then-insert convention.
type RefreshToken struct {
	ID        string `gorm:"primaryKey"`
	UserID    string `gorm:"uniqueIndex;not null"`
	Token     string `gorm:"uniqueIndex;not null"`
	CreatedAt time.Time
	ExpiresAt time.Time `gorm:"not null"`
}

func (RefreshToken) TableName() string {
	return "refresh_tokens"
}

func (token *RefreshToken) BeforeCreate(tx *gorm.DB) error {
	if token.ID == "" {
		token.ID = uuid.NewString()
	}
	return nil
}

// Post is a blog entry. Content is markdown source stored verbatim.
type Post struct {
	ID          string `gorm:"primaryKey"`
	Slug        string `gorm:"uniqueIndex;not null"`
	Title       string `gorm:"not null"`
	Description string
	Content     string `gorm:"not null"`
	Published   bool   `gorm:"not null;default:false"`
	Views       int64  `gorm:"not null;default:0"`
	AuthorID    string `gorm:"index;not null"`
	CreatedAt   time.Time
	UpdatedAt   time.Time

	Author   User      `gorm:"foreignKey:AuthorID"`
	Tags     []Tag     `gorm:"many2many:post_tags"`
	Comments []Comment `gorm:"foreignKey:PostID"`
}

func (Post) TableName() string {
	return "posts"
}

func (post *Post) BeforeCreate(tx *gorm.DB) error {
	if post.ID == "" {
		post.ID = uuid.NewString()
	}
	return nil
}

// Tag labels posts; the name is the natural key.
type Tag struct {
	ID   string `gorm:"primaryKey"`
	Name string `gorm:"uniqueIndex;not null"`
}

func (Tag) TableName() string {
	return "tags"
}

func (tag *Tag) BeforeCreate(tx *gorm.DB) error {
	if tag.ID == "" {
		tag.ID = uuid.NewString()
	}
	return nil
}

// Comment is attached to a post; ParentID links a single level of replies.
type Comment struct {
	ID        string `gorm:"primaryKey"`
	Content   string `gorm:"not null"`
	AuthorID  string `gorm:"index;not null"`
	PostID    string `gorm:"index;not null"`
	ParentID  *string
	CreatedAt time.Time
	UpdatedAt time.Time

	Author  User      `gorm:"foreignKey:AuthorID"`
	Replies []Comment `gorm:"foreignKey:ParentID"`
}

func (Comment) TableName() string {
	return "comments"
}

func (comment *Comment) BeforeCreate(tx *gorm.DB) error {
	if comment.ID == "" {
		comment.ID = uuid.NewString()
	}
	return nil
}

// ViewStat accumulates one row per post per day.
type ViewStat struct {
	ID     string    `gorm:"primaryKey"`
	PostID string    `gorm:"not null;uniqueIndex:idx_view_stats_post_day"`
	Day    time.Time `gorm:"not null;uniqueIndex:idx_view_stats_post_day"`
	Count  int64     `gorm:"not null;default:0"`
}

func (ViewStat) TableName() string {
	return "view_stats"
}

func (stat *ViewStat) BeforeCreate(tx *gorm.DB) error {
	if stat.ID == "" {
		stat.ID = uuid.NewString()
	}
	return nil
}

// Upload is the audit record for an image stored in object storage.
type Upload struct {
	ID          string `gorm:"primaryKey"`
	UserID      string `gorm:"index;not null"`
	Key         string `gorm:"not null"`
	URL         string `gorm:"not null"`
	ContentType string
	SizeBytes   int64
	CreatedAt   time.Time
}

func (Upload) TableName() string {
	return "uploads"
}

func (upload *Upload) BeforeCreate(tx *gorm.DB) error {
	if upload.ID == "" {
		upload.ID = uuid.NewString()
	}
	return nil
}
