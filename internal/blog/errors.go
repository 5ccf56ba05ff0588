package blog

import "errors"

var (
	// ErrPostNotFound indicates no post matched the lookup, or the viewer is
	// not allowed to see it (the two are indistinguishable to the caller).
	ErrPostNotFound = errors.New("blog.post_not_found")
	// ErrCommentNotFound indicates no comment row matched the lookup.
	ErrCommentNotFound = errors.New("blog.comment_not_found")
	// ErrPermissionDenied indicates the actor may not modify the record.
	ErrPermissionDenied = errors.New("blog.permission_denied")
	// ErrMissingTitle indicates a post was submitted without a title.
	ErrMissingTitle = errors.New("blog.missing_title")
	// ErrMissingContent indicates a post was submitted without content.
	ErrMissingContent = errors.New("blog.missing_content")
	// ErrMissingComment indicates a comment was submitted without content.
	ErrMissingComment = errors.New("blog.missing_comment")
	// ErrInvalidParent indicates the reply target does not belong to the post
	// or is itself a reply (replies are single-level).
	ErrInvalidParent = errors.New("blog.invalid_parent")
)
