package blog

import (
	"context"
	"fmt"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"

	"github.com/tyemirov/behindy/internal/store"
)

type fixedClock struct {
	current time.Time
}

func (clock *fixedClock) Now() time.Time {
	return clock.current
}

type blogEnvironment struct {
	db      *gorm.DB
	store   *Store
	service *Service
	clock   *fixedClock
}

func newBlogEnvironment(t *testing.T) *blogEnvironment {
	t.Helper()
	gormDB, _, openErr := store.Open("sqlite://file::memory:")
	if openErr != nil {
		t.Fatalf("open test database: %v", openErr)
	}
	t.Cleanup(func() { _ = store.Close(gormDB) })

	blogStore := NewStore(gormDB)
	clock := &fixedClock{current: time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)}
	service := NewService(blogStore, clock, zaptest.NewLogger(t))
	return &blogEnvironment{db: gormDB, store: blogStore, service: service, clock: clock}
}

func createTestUser(t *testing.T, env *blogEnvironment, email string) *store.User {
	t.Helper()
	user := &store.User{Email: email, Name: email, Role: store.RoleUser}
	if createErr := env.db.Create(user).Error; createErr != nil {
		t.Fatalf("create user %s: %v", email, createErr)
	}
	return user
}

func createPublishedPost(t *testing.T, env *blogEnvironment, author *store.User, title string) *store.Post {
	t.Helper()
	post, createErr := env.service.CreatePost(context.Background(), author, PostInput{
		Title:     title,
		Content:   fmt.Sprintf("content of %s", title),
		Published: true,
	})
	if createErr != nil {
		t.Fatalf("create post %q: %v", title, createErr)
	}
	return post
}
