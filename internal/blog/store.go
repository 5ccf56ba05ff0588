package blog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tyemirov/behindy/internal/store"
)

// ListParams narrows and pages a published-post listing.
type ListParams struct {
	Page        int
	Limit       int
	Query       string
	Tag         string
	SortByViews bool
}

const defaultPageLimit = 10

func (params ListParams) normalized() ListParams {
	if params.Page < 1 {
		params.Page = 1
	}
	if params.Limit < 1 {
		params.Limit = defaultPageLimit
	}
	return params
}

// PostPage is one page of a listing plus the total match count.
type PostPage struct {
	Posts []store.Post
	Total int64
	Page  int
	Limit int
}

// TagCount pairs a tag with the number of published posts carrying it.
type TagCount struct {
	ID    string
	Name  string
	Posts int64
}

// Store runs the blog queries over the shared database handle.
type Store struct {
	db *gorm.DB
}

// NewStore wraps an open database handle.
func NewStore(gormDB *gorm.DB) *Store {
	return &Store{db: gormDB}
}

// CreatePost inserts the post together with its tag associations.
func (blogStore *Store) CreatePost(ctx context.Context, post *store.Post) error {
	if err := blogStore.db.WithContext(ctx).Create(post).Error; err != nil {
		return fmt.Errorf("blog_store.create_post: %w", err)
	}
	return nil
}

// FindPostByID loads a post with its author and tags, drafts included.
func (blogStore *Store) FindPostByID(ctx context.Context, postID string) (*store.Post, error) {
	var post store.Post
	err := blogStore.db.WithContext(ctx).
		Preload("Author").
		Preload("Tags").
		Where("id = ?", postID).
		First(&post).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("blog_store.find_post: %w", ErrPostNotFound)
		}
		return nil, fmt.Errorf("blog_store.find_post: %w", err)
	}
	return &post, nil
}

// FindPostBySlug loads a post with author, tags, and its comment tree:
// top-level comments newest first, replies oldest first.
func (blogStore *Store) FindPostBySlug(ctx context.Context, slug string) (*store.Post, error) {
	var post store.Post
	err := blogStore.db.WithContext(ctx).
		Preload("Author").
		Preload("Tags").
		Preload("Comments", "parent_id IS NULL", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at DESC")
		}).
		Preload("Comments.Author").
		Preload("Comments.Replies", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC")
		}).
		Preload("Comments.Replies.Author").
		Where("slug = ?", slug).
		First(&post).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("blog_store.find_post: %w", ErrPostNotFound)
		}
		return nil, fmt.Errorf("blog_store.find_post: %w", err)
	}
	return &post, nil
}

// SlugTaken reports whether another post already owns the slug.
func (blogStore *Store) SlugTaken(ctx context.Context, slug string, excludePostID string) (bool, error) {
	var matches int64
	query := blogStore.db.WithContext(ctx).Model(&store.Post{}).Where("slug = ?", slug)
	if excludePostID != "" {
		query = query.Where("id <> ?", excludePostID)
	}
	if err := query.Count(&matches).Error; err != nil {
		return false, fmt.Errorf("blog_store.slug_taken: %w", err)
	}
	return matches > 0, nil
}

// SavePost persists field changes on an existing post.
func (blogStore *Store) SavePost(ctx context.Context, post *store.Post) error {
	if err := blogStore.db.WithContext(ctx).Save(post).Error; err != nil {
		return fmt.Errorf("blog_store.save_post: %w", err)
	}
	return nil
}

// ReplaceTags rewires the post's tag associations.
func (blogStore *Store) ReplaceTags(ctx context.Context, post *store.Post, tags []store.Tag) error {
	if err := blogStore.db.WithContext(ctx).Model(post).Association("Tags").Replace(tags); err != nil {
		return fmt.Errorf("blog_store.replace_tags: %w", err)
	}
	post.Tags = tags
	return nil
}

// DeletePost removes the post, its comments, its view stats, and its tag links.
func (blogStore *Store) DeletePost(ctx context.Context, postID string) error {
	err := blogStore.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("post_id = ?", postID).Delete(&store.Comment{}).Error; err != nil {
			return err
		}
		if err := tx.Where("post_id = ?", postID).Delete(&store.ViewStat{}).Error; err != nil {
			return err
		}
		var post store.Post
		post.ID = postID
		if err := tx.Model(&post).Association("Tags").Clear(); err != nil {
			return err
		}
		result := tx.Where("id = ?", postID).Delete(&store.Post{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrPostNotFound
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("blog_store.delete_post: %w", err)
	}
	return nil
}

// ListPublished returns one page of published posts matching the params.
func (blogStore *Store) ListPublished(ctx context.Context, params ListParams) (PostPage, error) {
	params = params.normalized()
	query := blogStore.db.WithContext(ctx).Model(&store.Post{}).Where("posts.published = ?", true)

	if needle := strings.ToLower(strings.TrimSpace(params.Query)); needle != "" {
		pattern := "%" + needle + "%"
		query = query.Where(
			"lower(posts.title) LIKE ? OR lower(posts.description) LIKE ? OR lower(posts.content) LIKE ?",
			pattern, pattern, pattern,
		)
	}
	if params.Tag != "" {
		query = query.
			Joins("JOIN post_tags ON post_tags.post_id = posts.id").
			Joins("JOIN tags ON tags.id = post_tags.tag_id").
			Where("tags.name = ?", params.Tag)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return PostPage{}, fmt.Errorf("blog_store.list_published: %w", err)
	}

	order := "posts.created_at DESC"
	if params.SortByViews {
		order = "posts.views DESC, posts.created_at DESC"
	}
	var posts []store.Post
	err := query.
		Preload("Author").
		Preload("Tags").
		Order(order).
		Offset((params.Page - 1) * params.Limit).
		Limit(params.Limit).
		Find(&posts).Error
	if err != nil {
		return PostPage{}, fmt.Errorf("blog_store.list_published: %w", err)
	}
	return PostPage{Posts: posts, Total: total, Page: params.Page, Limit: params.Limit}, nil
}

// ListByAuthor returns the author's posts newest first. Drafts are included
// only when includeDrafts is set.
func (blogStore *Store) ListByAuthor(ctx context.Context, authorID string, includeDrafts bool) ([]store.Post, error) {
	query := blogStore.db.WithContext(ctx).Model(&store.Post{}).Where("author_id = ?", authorID)
	if !includeDrafts {
		query = query.Where("published = ?", true)
	}
	var posts []store.Post
	if err := query.Preload("Tags").Order("created_at DESC").Find(&posts).Error; err != nil {
		return nil, fmt.Errorf("blog_store.list_by_author: %w", err)
	}
	return posts, nil
}

// TagIndex returns every tag with its published-post count, most used first.
func (blogStore *Store) TagIndex(ctx context.Context) ([]TagCount, error) {
	var counts []TagCount
	err := blogStore.db.WithContext(ctx).
		Table("tags").
		Select("tags.id AS id, tags.name AS name, COUNT(posts.id) AS posts").
		Joins("LEFT JOIN post_tags ON post_tags.tag_id = tags.id").
		Joins("LEFT JOIN posts ON posts.id = post_tags.post_id AND posts.published = ?", true).
		Group("tags.id, tags.name").
		Order("posts DESC, tags.name ASC").
		Scan(&counts).Error
	if err != nil {
		return nil, fmt.Errorf("blog_store.tag_index: %w", err)
	}
	return counts, nil
}

// EnsureTags resolves tag names to rows, creating the missing ones. Blank
// names are skipped; names are matched verbatim.
func (blogStore *Store) EnsureTags(ctx context.Context, names []string) ([]store.Tag, error) {
	tags := make([]store.Tag, 0, len(names))
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		var tag store.Tag
		err := blogStore.db.WithContext(ctx).Where("name = ?", name).First(&tag).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			tag = store.Tag{Name: name}
			err = blogStore.db.WithContext(ctx).Create(&tag).Error
		}
		if err != nil {
			return nil, fmt.Errorf("blog_store.ensure_tags: %w", err)
		}
		tags = append(tags, tag)
	}
	return tags, nil
}

// RecordView bumps the post's view counter and upserts the daily stat row.
func (blogStore *Store) RecordView(ctx context.Context, postID string, day time.Time) error {
	day = day.UTC().Truncate(24 * time.Hour)
	err := blogStore.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&store.Post{}).
			Where("id = ?", postID).
			UpdateColumn("views", gorm.Expr("views + 1")).Error; err != nil {
			return err
		}
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "post_id"}, {Name: "day"}},
			DoUpdates: clause.Assignments(map[string]interface{}{"count": gorm.Expr("count + 1")}),
		}).Create(&store.ViewStat{PostID: postID, Day: day, Count: 1}).Error
	})
	if err != nil {
		return fmt.Errorf("blog_store.record_view: %w", err)
	}
	return nil
}

// IncrementViews bumps only the denormalized per-post counter. Used when the
// daily rollup is written by an external recorder instead of RecordView.
func (blogStore *Store) IncrementViews(ctx context.Context, postID string) error {
	err := blogStore.db.WithContext(ctx).Model(&store.Post{}).
		Where("id = ?", postID).
		UpdateColumn("views", gorm.Expr("views + 1")).Error
	if err != nil {
		return fmt.Errorf("blog_store.increment_views: %w", err)
	}
	return nil
}

// CreateComment inserts a comment row.
func (blogStore *Store) CreateComment(ctx context.Context, comment *store.Comment) error {
	if err := blogStore.db.WithContext(ctx).Create(comment).Error; err != nil {
		return fmt.Errorf("blog_store.create_comment: %w", err)
	}
	return nil
}

// FindCommentByID loads a comment with its author.
func (blogStore *Store) FindCommentByID(ctx context.Context, commentID string) (*store.Comment, error) {
	var comment store.Comment
	err := blogStore.db.WithContext(ctx).Preload("Author").Where("id = ?", commentID).First(&comment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("blog_store.find_comment: %w", ErrCommentNotFound)
		}
		return nil, fmt.Errorf("blog_store.find_comment: %w", err)
	}
	return &comment, nil
}

// DeleteComment removes a comment and its replies.
func (blogStore *Store) DeleteComment(ctx context.Context, commentID string) error {
	err := blogStore.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("parent_id = ?", commentID).Delete(&store.Comment{}).Error; err != nil {
			return err
		}
		result := tx.Where("id = ?", commentID).Delete(&store.Comment{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrCommentNotFound
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("blog_store.delete_comment: %w", err)
	}
	return nil
}
