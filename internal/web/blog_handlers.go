package web

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/tyemirov/behindy/internal/authkit"
	"github.com/tyemirov/behindy/internal/blog"
	"github.com/tyemirov/behindy/internal/store"
)

type postInputPayload struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Content     string   `json:"content"`
	Published   bool     `json:"published"`
	Tags        []string `json:"tags"`
}

func (payload postInputPayload) toInput() blog.PostInput {
	return blog.PostInput{
		Title:       payload.Title,
		Description: payload.Description,
		Content:     payload.Content,
		Published:   payload.Published,
		Tags:        payload.Tags,
	}
}

// writeBlogError maps blog sentinels onto JSON status codes.
func (server *Server) writeBlogError(contextGin *gin.Context, err error) {
	switch {
	case errors.Is(err, blog.ErrPostNotFound):
		contextGin.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "post_not_found"})
	case errors.Is(err, blog.ErrCommentNotFound):
		contextGin.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "comment_not_found"})
	case errors.Is(err, blog.ErrPermissionDenied):
		contextGin.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
	case errors.Is(err, blog.ErrMissingTitle):
		contextGin.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "missing_title"})
	case errors.Is(err, blog.ErrMissingContent):
		contextGin.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "missing_content"})
	case errors.Is(err, blog.ErrMissingComment):
		contextGin.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "missing_comment"})
	case errors.Is(err, blog.ErrInvalidParent):
		contextGin.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid_parent"})
	default:
		server.logger.Error("blog request failed", zap.Error(err))
		contextGin.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "server_error"})
	}
}

func listParamsFromQuery(contextGin *gin.Context) blog.ListParams {
	page, _ := strconv.Atoi(contextGin.Query("page"))
	limit, _ := strconv.Atoi(contextGin.Query("limit"))
	return blog.ListParams{
		Page:        page,
		Limit:       limit,
		Query:       contextGin.Query("q"),
		Tag:         contextGin.Query("tag"),
		SortByViews: contextGin.Query("sort") == "views",
	}
}

func pagePayload(page blog.PostPage) gin.H {
	posts := make([]gin.H, 0, len(page.Posts))
	for index := range page.Posts {
		posts = append(posts, postListPayload(&page.Posts[index]))
	}
	return gin.H{
		"posts": posts,
		"total": page.Total,
		"page":  page.Page,
		"limit": page.Limit,
	}
}

func postListPayload(post *store.Post) gin.H {
	tags := make([]string, 0, len(post.Tags))
	for _, tag := range post.Tags {
		tags = append(tags, tag.Name)
	}
	payload := gin.H{
		"id":          post.ID,
		"slug":        post.Slug,
		"title":       post.Title,
		"description": post.Description,
		"published":   post.Published,
		"views":       post.Views,
		"tags":        tags,
		"createdAt":   post.CreatedAt,
	}
	if post.Author.ID != "" {
		payload["author"] = gin.H{"id": post.Author.ID, "name": post.Author.Name}
	}
	return payload
}

func commentPayload(comment *store.Comment) gin.H {
	payload := gin.H{
		"id":        comment.ID,
		"content":   comment.Content,
		"createdAt": comment.CreatedAt,
		"author":    gin.H{"id": comment.Author.ID, "name": comment.Author.Name},
	}
	if comment.ParentID != nil {
		payload["parentId"] = *comment.ParentID
	}
	if len(comment.Replies) > 0 {
		replies := make([]gin.H, 0, len(comment.Replies))
		for index := range comment.Replies {
			replies = append(replies, commentPayload(&comment.Replies[index]))
		}
		payload["replies"] = replies
	}
	return payload
}

func postDetailPayload(post *store.Post) gin.H {
	payload := postListPayload(post)
	payload["content"] = post.Content
	comments := make([]gin.H, 0, len(post.Comments))
	for index := range post.Comments {
		comments = append(comments, commentPayload(&post.Comments[index]))
	}
	payload["comments"] = comments
	return payload
}

func (server *Server) handleListPosts(contextGin *gin.Context) {
	page, listErr := server.blog.ListPublished(contextGin.Request.Context(), listParamsFromQuery(contextGin))
	if listErr != nil {
		server.writeBlogError(contextGin, listErr)
		return
	}
	contextGin.JSON(http.StatusOK, pagePayload(page))
}

func (server *Server) handleGetPost(contextGin *gin.Context) {
	viewer := server.currentUserOptional(contextGin)
	post, getErr := server.blog.GetPostBySlug(contextGin.Request.Context(), contextGin.Param("slug"), viewer)
	if getErr != nil {
		server.writeBlogError(contextGin, getErr)
		return
	}
	contextGin.JSON(http.StatusOK, postDetailPayload(post))
}

func (server *Server) handleCreatePost(contextGin *gin.Context) {
	var payload postInputPayload
	if bindErr := contextGin.BindJSON(&payload); bindErr != nil {
		contextGin.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid_json"})
		return
	}
	author := authkit.CurrentUser(contextGin)
	post, createErr := server.blog.CreatePost(contextGin.Request.Context(), author, payload.toInput())
	if createErr != nil {
		server.writeBlogError(contextGin, createErr)
		return
	}
	contextGin.JSON(http.StatusCreated, postDetailPayload(post))
}

func (server *Server) handleUpdatePost(contextGin *gin.Context) {
	var payload postInputPayload
	if bindErr := contextGin.BindJSON(&payload); bindErr != nil {
		contextGin.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid_json"})
		return
	}
	ctx := contextGin.Request.Context()
	existing, findErr := server.blog.Store().FindPostBySlug(ctx, contextGin.Param("slug"))
	if findErr != nil {
		server.writeBlogError(contextGin, findErr)
		return
	}
	actor := authkit.CurrentUser(contextGin)
	updated, updateErr := server.blog.UpdatePost(ctx, existing.ID, actor, payload.toInput())
	if updateErr != nil {
		server.writeBlogError(contextGin, updateErr)
		return
	}
	contextGin.JSON(http.StatusOK, postDetailPayload(updated))
}

func (server *Server) handleDeletePost(contextGin *gin.Context) {
	ctx := contextGin.Request.Context()
	existing, findErr := server.blog.Store().FindPostBySlug(ctx, contextGin.Param("slug"))
	if findErr != nil {
		server.writeBlogError(contextGin, findErr)
		return
	}
	actor := authkit.CurrentUser(contextGin)
	if deleteErr := server.blog.DeletePost(ctx, existing.ID, actor); deleteErr != nil {
		server.writeBlogError(contextGin, deleteErr)
		return
	}
	contextGin.JSON(http.StatusOK, gin.H{"deleted": true})
}

func (server *Server) handleTogglePublish(contextGin *gin.Context) {
	ctx := contextGin.Request.Context()
	existing, findErr := server.blog.Store().FindPostBySlug(ctx, contextGin.Param("slug"))
	if findErr != nil {
		server.writeBlogError(contextGin, findErr)
		return
	}
	actor := authkit.CurrentUser(contextGin)
	toggled, toggleErr := server.blog.TogglePublish(ctx, existing.ID, actor)
	if toggleErr != nil {
		server.writeBlogError(contextGin, toggleErr)
		return
	}
	contextGin.JSON(http.StatusOK, gin.H{"slug": toggled.Slug, "published": toggled.Published})
}

func (server *Server) handleAddComment(contextGin *gin.Context) {
	var payload struct {
		Content  string  `json:"content"`
		ParentID *string `json:"parentId"`
	}
	if bindErr := contextGin.BindJSON(&payload); bindErr != nil {
		contextGin.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid_json"})
		return
	}
	ctx := contextGin.Request.Context()
	existing, findErr := server.blog.Store().FindPostBySlug(ctx, contextGin.Param("slug"))
	if findErr != nil {
		server.writeBlogError(contextGin, findErr)
		return
	}
	actor := authkit.CurrentUser(contextGin)
	comment, commentErr := server.blog.AddComment(ctx, actor, existing.ID, payload.Content, payload.ParentID)
	if commentErr != nil {
		server.writeBlogError(contextGin, commentErr)
		return
	}
	contextGin.JSON(http.StatusCreated, commentPayload(comment))
}

func (server *Server) handleDeleteComment(contextGin *gin.Context) {
	actor := authkit.CurrentUser(contextGin)
	if deleteErr := server.blog.DeleteComment(contextGin.Request.Context(), actor, contextGin.Param("id")); deleteErr != nil {
		server.writeBlogError(contextGin, deleteErr)
		return
	}
	contextGin.JSON(http.StatusOK, gin.H{"deleted": true})
}

// handleSearch reuses the listing filters; type=tag&q=<name> lists posts
// under a tag.
func (server *Server) handleSearch(contextGin *gin.Context) {
	params := listParamsFromQuery(contextGin)
	if contextGin.Query("type") == "tag" {
		params.Tag = contextGin.Query("q")
		params.Query = ""
	}
	page, listErr := server.blog.ListPublished(contextGin.Request.Context(), params)
	if listErr != nil {
		server.writeBlogError(contextGin, listErr)
		return
	}
	contextGin.JSON(http.StatusOK, pagePayload(page))
}

func (server *Server) handleTags(contextGin *gin.Context) {
	index, indexErr := server.blog.TagIndex(contextGin.Request.Context())
	if indexErr != nil {
		server.writeBlogError(contextGin, indexErr)
		return
	}
	tags := make([]gin.H, 0, len(index))
	for _, entry := range index {
		tags = append(tags, gin.H{"id": entry.ID, "name": entry.Name, "posts": entry.Posts})
	}
	contextGin.JSON(http.StatusOK, gin.H{"tags": tags})
}

func (server *Server) handleAuthorPosts(contextGin *gin.Context) {
	viewer := server.currentUserOptional(contextGin)
	posts, listErr := server.blog.PostsByAuthor(contextGin.Request.Context(), contextGin.Param("id"), viewer)
	if listErr != nil {
		server.writeBlogError(contextGin, listErr)
		return
	}
	payload := make([]gin.H, 0, len(posts))
	for index := range posts {
		payload = append(payload, postListPayload(&posts[index]))
	}
	contextGin.JSON(http.StatusOK, gin.H{"posts": payload})
}
