package blog

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/tyemirov/behindy/internal/authkit"
	"github.com/tyemirov/behindy/internal/store"
)

// PostInput carries the writable fields of a post.
type PostInput struct {
	Title       string
	Description string
	Content     string
	Published   bool
	Tags        []string
}

// DailyViewRecorder writes the per-day view rollup. Postgres deployments
// install a raw-SQL recorder; without one the GORM store writes the rollup.
type DailyViewRecorder interface {
	RecordView(ctx context.Context, postID string, day time.Time) error
}

// Service applies the blog rules: slugs, visibility, and ownership.
type Service struct {
	store     *Store
	clock     authkit.Clock
	logger    *zap.Logger
	viewStats DailyViewRecorder
}

// NewService wires the blog service over its store.
func NewService(blogStore *Store, clock authkit.Clock, logger *zap.Logger) *Service {
	if clock == nil {
		clock = authkit.SystemClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: blogStore, clock: clock, logger: logger}
}

// UseDailyViewRecorder installs an external writer for the daily view rollup.
func (service *Service) UseDailyViewRecorder(recorder DailyViewRecorder) {
	service.viewStats = recorder
}

// Store exposes the underlying blog store for read-side collaborators.
func (service *Service) Store() *Store {
	return service.store
}

// CreatePost creates a post for the author, resolving a unique slug and
// creating any tags not seen before.
func (service *Service) CreatePost(ctx context.Context, author *store.User, input PostInput) (*store.Post, error) {
	if strings.TrimSpace(input.Title) == "" {
		return nil, fmt.Errorf("blog.create_post: %w", ErrMissingTitle)
	}
	if strings.TrimSpace(input.Content) == "" {
		return nil, fmt.Errorf("blog.create_post: %w", ErrMissingContent)
	}
	slug, slugErr := service.uniqueSlug(ctx, input.Title, "")
	if slugErr != nil {
		return nil, slugErr
	}
	post := &store.Post{
		Slug:        slug,
		Title:       strings.TrimSpace(input.Title),
		Description: strings.TrimSpace(input.Description),
		Content:     input.Content,
		Published:   input.Published,
		AuthorID:    author.ID,
	}
	if createErr := service.store.CreatePost(ctx, post); createErr != nil {
		return nil, createErr
	}
	tags, tagErr := service.store.EnsureTags(ctx, input.Tags)
	if tagErr != nil {
		return nil, tagErr
	}
	if len(tags) > 0 {
		if replaceErr := service.store.ReplaceTags(ctx, post, tags); replaceErr != nil {
			return nil, replaceErr
		}
	}
	post.Author = *author
	return post, nil
}

// GetPostBySlug returns the post when the viewer may see it. A missing post
// and a draft hidden from the viewer are indistinguishable. Reads of a
// published post count as views.
func (service *Service) GetPostBySlug(ctx context.Context, slug string, viewer *store.User) (*store.Post, error) {
	post, findErr := service.store.FindPostBySlug(ctx, slug)
	if findErr != nil {
		return nil, findErr
	}
	if !canViewPost(post, viewer) {
		return nil, fmt.Errorf("blog.get_post: %w", ErrPostNotFound)
	}
	if post.Published {
		if viewErr := service.recordView(ctx, post.ID); viewErr != nil {
			// A lost view must not fail the read.
			service.logger.Warn("blog: view recording failed", zap.Error(viewErr))
		} else {
			post.Views++
		}
	}
	return post, nil
}

// UpdatePost applies the input to the author's post. The slug is regenerated
// only when the title changed.
func (service *Service) UpdatePost(ctx context.Context, postID string, actor *store.User, input PostInput) (*store.Post, error) {
	post, findErr := service.store.FindPostByID(ctx, postID)
	if findErr != nil {
		return nil, findErr
	}
	if post.AuthorID != actor.ID {
		return nil, fmt.Errorf("blog.update_post: %w", ErrPermissionDenied)
	}
	if strings.TrimSpace(input.Title) == "" {
		return nil, fmt.Errorf("blog.update_post: %w", ErrMissingTitle)
	}
	if strings.TrimSpace(input.Content) == "" {
		return nil, fmt.Errorf("blog.update_post: %w", ErrMissingContent)
	}

	newTitle := strings.TrimSpace(input.Title)
	if newTitle != post.Title {
		slug, slugErr := service.uniqueSlug(ctx, newTitle, post.ID)
		if slugErr != nil {
			return nil, slugErr
		}
		post.Slug = slug
	}
	post.Title = newTitle
	post.Description = strings.TrimSpace(input.Description)
	post.Content = input.Content
	post.Published = input.Published
	if saveErr := service.store.SavePost(ctx, post); saveErr != nil {
		return nil, saveErr
	}

	tags, tagErr := service.store.EnsureTags(ctx, input.Tags)
	if tagErr != nil {
		return nil, tagErr
	}
	if replaceErr := service.store.ReplaceTags(ctx, post, tags); replaceErr != nil {
		return nil, replaceErr
	}
	return post, nil
}

// TogglePublish flips the published flag on the author's post.
func (service *Service) TogglePublish(ctx context.Context, postID string, actor *store.User) (*store.Post, error) {
	post, findErr := service.store.FindPostByID(ctx, postID)
	if findErr != nil {
		return nil, findErr
	}
	if post.AuthorID != actor.ID {
		return nil, fmt.Errorf("blog.toggle_publish: %w", ErrPermissionDenied)
	}
	post.Published = !post.Published
	if saveErr := service.store.SavePost(ctx, post); saveErr != nil {
		return nil, saveErr
	}
	return post, nil
}

// DeletePost removes the author's post with its comments and stats.
func (service *Service) DeletePost(ctx context.Context, postID string, actor *store.User) error {
	post, findErr := service.store.FindPostByID(ctx, postID)
	if findErr != nil {
		return findErr
	}
	if post.AuthorID != actor.ID {
		return fmt.Errorf("blog.delete_post: %w", ErrPermissionDenied)
	}
	return service.store.DeletePost(ctx, post.ID)
}

// ListPublished pages through published posts with optional search and tag
// filters.
func (service *Service) ListPublished(ctx context.Context, params ListParams) (PostPage, error) {
	return service.store.ListPublished(ctx, params)
}

// PostsByAuthor lists an author's posts; the author sees their own drafts.
func (service *Service) PostsByAuthor(ctx context.Context, authorID string, viewer *store.User) ([]store.Post, error) {
	includeDrafts := viewer != nil && viewer.ID == authorID
	return service.store.ListByAuthor(ctx, authorID, includeDrafts)
}

// TagIndex lists every tag with its published-post count.
func (service *Service) TagIndex(ctx context.Context) ([]TagCount, error) {
	return service.store.TagIndex(ctx)
}

// AddComment attaches a comment, or a single-level reply when parentID is
// set, to a post the actor can see.
func (service *Service) AddComment(ctx context.Context, actor *store.User, postID string, content string, parentID *string) (*store.Comment, error) {
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("blog.add_comment: %w", ErrMissingComment)
	}
	post, findErr := service.store.FindPostByID(ctx, postID)
	if findErr != nil {
		return nil, findErr
	}
	if !canViewPost(post, actor) {
		return nil, fmt.Errorf("blog.add_comment: %w", ErrPostNotFound)
	}
	if parentID != nil {
		parent, parentErr := service.store.FindCommentByID(ctx, *parentID)
		if parentErr != nil {
			return nil, parentErr
		}
		if parent.PostID != post.ID || parent.ParentID != nil {
			return nil, fmt.Errorf("blog.add_comment: %w", ErrInvalidParent)
		}
	}
	comment := &store.Comment{
		Content:  strings.TrimSpace(content),
		AuthorID: actor.ID,
		PostID:   post.ID,
		ParentID: parentID,
	}
	if createErr := service.store.CreateComment(ctx, comment); createErr != nil {
		return nil, createErr
	}
	comment.Author = *actor
	return comment, nil
}

// DeleteComment removes a comment. Allowed for the comment author and for
// the author of the post it sits on.
func (service *Service) DeleteComment(ctx context.Context, actor *store.User, commentID string) error {
	comment, findErr := service.store.FindCommentByID(ctx, commentID)
	if findErr != nil {
		return findErr
	}
	post, postErr := service.store.FindPostByID(ctx, comment.PostID)
	if postErr != nil {
		return postErr
	}
	if comment.AuthorID != actor.ID && post.AuthorID != actor.ID {
		return fmt.Errorf("blog.delete_comment: %w", ErrPermissionDenied)
	}
	return service.store.DeleteComment(ctx, comment.ID)
}

func (service *Service) recordView(ctx context.Context, postID string) error {
	if service.viewStats == nil {
		return service.store.RecordView(ctx, postID, service.clock.Now())
	}
	if incrementErr := service.store.IncrementViews(ctx, postID); incrementErr != nil {
		return incrementErr
	}
	return service.viewStats.RecordView(ctx, postID, service.clock.Now())
}

func (service *Service) uniqueSlug(ctx context.Context, title string, excludePostID string) (string, error) {
	base := Slugify(title)
	candidate := base
	for suffix := 2; ; suffix++ {
		taken, checkErr := service.store.SlugTaken(ctx, candidate, excludePostID)
		if checkErr != nil {
			return "", checkErr
		}
		if !taken {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s-%d", base, suffix)
	}
}

func canViewPost(post *store.Post, viewer *store.User) bool {
	if post.Published {
		return true
	}
	return viewer != nil && viewer.ID == post.AuthorID
}
