package analytics

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/tyemirov/behindy/internal/authkit"
	"github.com/tyemirov/behindy/internal/store"
)

// dashboardWindowDays is the length of the daily view series.
const dashboardWindowDays = 30

// PostSummary is one dashboard row: a post with its comment count.
type PostSummary struct {
	ID        string    `json:"id"`
	Slug      string    `json:"slug"`
	Title     string    `json:"title"`
	Published bool      `json:"published"`
	Views     int64     `json:"views"`
	Comments  int64     `json:"comments"`
	CreatedAt time.Time `json:"createdAt"`
}

// DailyViews is one point of the view time series.
type DailyViews struct {
	Day   time.Time `json:"day"`
	Views int64     `json:"views"`
}

// AuthorDashboard aggregates one author's posts, totals, and a 30-day
// daily view series.
type AuthorDashboard struct {
	Posts          []PostSummary `json:"posts"`
	TotalPosts     int64         `json:"totalPosts"`
	PublishedPosts int64         `json:"publishedPosts"`
	DraftPosts     int64         `json:"draftPosts"`
	TotalViews     int64         `json:"totalViews"`
	TotalComments  int64         `json:"totalComments"`
	DailyViews     []DailyViews  `json:"dailyViews"`
}

// AuthorAggregate is one author's platform-wide footprint.
type AuthorAggregate struct {
	AuthorID   string `json:"authorId"`
	AuthorName string `json:"authorName"`
	Posts      int64  `json:"posts"`
	Views      int64  `json:"views"`
}

// PlatformDashboard aggregates the whole platform for ADMIN users.
type PlatformDashboard struct {
	TotalUsers    int64             `json:"totalUsers"`
	TotalPosts    int64             `json:"totalPosts"`
	TotalComments int64             `json:"totalComments"`
	TotalViews    int64             `json:"totalViews"`
	TopPosts      []PostSummary     `json:"topPosts"`
	Authors       []AuthorAggregate `json:"authors"`
}

// Service answers dashboard queries over the shared database.
type Service struct {
	db     *gorm.DB
	clock  authkit.Clock
	logger *zap.Logger
}

// NewService wires the analytics service.
func NewService(gormDB *gorm.DB, clock authkit.Clock, logger *zap.Logger) *Service {
	if clock == nil {
		clock = authkit.SystemClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{db: gormDB, clock: clock, logger: logger}
}

// AuthorDashboard builds the dashboard for one author, drafts included.
func (service *Service) AuthorDashboard(ctx context.Context, authorID string) (*AuthorDashboard, error) {
	var summaries []PostSummary
	err := service.db.WithContext(ctx).
		Table("posts").
		Select("posts.id AS id, posts.slug AS slug, posts.title AS title, posts.published AS published, posts.views AS views, posts.created_at AS created_at, COUNT(comments.id) AS comments").
		Joins("LEFT JOIN comments ON comments.post_id = posts.id").
		Where("posts.author_id = ?", authorID).
		Group("posts.id, posts.slug, posts.title, posts.published, posts.views, posts.created_at").
		Order("posts.created_at DESC").
		Scan(&summaries).Error
	if err != nil {
		return nil, fmt.Errorf("analytics.author_dashboard: %w", err)
	}

	dashboard := &AuthorDashboard{Posts: summaries}
	for _, summary := range summaries {
		dashboard.TotalPosts++
		if summary.Published {
			dashboard.PublishedPosts++
		} else {
			dashboard.DraftPosts++
		}
		dashboard.TotalViews += summary.Views
		dashboard.TotalComments += summary.Comments
	}

	series, seriesErr := service.dailySeries(ctx, authorID)
	if seriesErr != nil {
		return nil, seriesErr
	}
	dashboard.DailyViews = series
	return dashboard, nil
}

// PlatformDashboard builds the platform-wide dashboard.
func (service *Service) PlatformDashboard(ctx context.Context) (*PlatformDashboard, error) {
	dashboard := &PlatformDashboard{}
	counts := []struct {
		model interface{}
		value *int64
	}{
		{&store.User{}, &dashboard.TotalUsers},
		{&store.Post{}, &dashboard.TotalPosts},
		{&store.Comment{}, &dashboard.TotalComments},
	}
	for _, target := range counts {
		if err := service.db.WithContext(ctx).Model(target.model).Count(target.value).Error; err != nil {
			return nil, fmt.Errorf("analytics.platform_dashboard: %w", err)
		}
	}
	if err := service.db.WithContext(ctx).
		Model(&store.Post{}).
		Select("COALESCE(SUM(views), 0)").
		Scan(&dashboard.TotalViews).Error; err != nil {
		return nil, fmt.Errorf("analytics.platform_dashboard: %w", err)
	}

	err := service.db.WithContext(ctx).
		Table("posts").
		Select("posts.id AS id, posts.slug AS slug, posts.title AS title, posts.published AS published, posts.views AS views, posts.created_at AS created_at, COUNT(comments.id) AS comments").
		Joins("LEFT JOIN comments ON comments.post_id = posts.id").
		Where("posts.published = ?", true).
		Group("posts.id, posts.slug, posts.title, posts.published, posts.views, posts.created_at").
		Order("posts.views DESC").
		Limit(10).
		Scan(&dashboard.TopPosts).Error
	if err != nil {
		return nil, fmt.Errorf("analytics.platform_dashboard: %w", err)
	}

	err = service.db.WithContext(ctx).
		Table("users").
		Select("users.id AS author_id, users.name AS author_name, COUNT(posts.id) AS posts, COALESCE(SUM(posts.views), 0) AS views").
		Joins("JOIN posts ON posts.author_id = users.id").
		Group("users.id, users.name").
		Order("views DESC").
		Scan(&dashboard.Authors).Error
	if err != nil {
		return nil, fmt.Errorf("analytics.platform_dashboard: %w", err)
	}
	return dashboard, nil
}

// dailySeries sums the author's view stats per day over the window, filling
// days without traffic with zeroes so charts get a contiguous series.
func (service *Service) dailySeries(ctx context.Context, authorID string) ([]DailyViews, error) {
	today := service.clock.Now().UTC().Truncate(24 * time.Hour)
	since := today.AddDate(0, 0, -(dashboardWindowDays - 1))

	var rows []DailyViews
	err := service.db.WithContext(ctx).
		Table("view_stats").
		Select("view_stats.day AS day, COALESCE(SUM(view_stats.count), 0) AS views").
		Joins("JOIN posts ON posts.id = view_stats.post_id").
		Where("posts.author_id = ? AND view_stats.day >= ?", authorID, since).
		Group("view_stats.day").
		Order("view_stats.day ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("analytics.daily_series: %w", err)
	}

	byDay := make(map[time.Time]int64, len(rows))
	for _, row := range rows {
		byDay[row.Day.UTC().Truncate(24*time.Hour)] = row.Views
	}
	series := make([]DailyViews, 0, dashboardWindowDays)
	for offset := 0; offset < dashboardWindowDays; offset++ {
		day := since.AddDate(0, 0, offset)
		series = append(series, DailyViews{Day: day, Views: byDay[day]})
	}
	return series, nil
}
