// Package seed provides helpers to create demo data for the application
// database. These helpers are intended for development and testing only.
package seed

import (
	"fmt"
	"math/rand"
	"strings"
	"time"

	"promptguy/internal/catalog"
	"promptguy/internal/models"

	"github.com/brianvoe/gofakeit/v6"
	"gorm.io/gorm"
)

// Factory builds domain entities and persists them to the database.
type Factory struct {
	db      *gorm.DB
	opts    Options
	faker   *gofakeit.Faker
	rng     *rand.Rand
	catalog *catalog.Catalog
}

// NewFactory creates a Factory bound to db. A zero Options.RandSeed seeds from the clock.
func NewFactory(db *gorm.DB, opts Options) *Factory {
	seed := opts.RandSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Factory{
		db:    db,
		opts:  opts,
		faker: gofakeit.New(seed),
		// #nosec G404: acceptable for seeding
		rng:     rand.New(rand.NewSource(seed)),
		catalog: catalog.Default(),
	}
}

// BuildUser returns an unsaved user with a claimed username.
func (f *Factory) BuildUser(overrides ...func(*models.User)) *models.User {
	first, last := f.faker.FirstName(), f.faker.LastName()
	handle := strings.ToLower(first) + fmt.Sprintf("%d", f.faker.Number(1000, 9999))
	user := &models.User{
		ExternalID: "user_seed" + strings.ReplaceAll(f.faker.UUID(), "-", "")[:16],
		Username:   handle,
		Email:      fmt.Sprintf("%s@example.com", handle),
		FirstName:  first,
		LastName:   last,
		ImageURL:   fmt.Sprintf("https://i.pravatar.cc/150?u=%s", handle),
		Bio:        f.faker.Sentence(10),
	}
	for _, override := range overrides {
		override(user)
	}
	return user
}

// CreateUser persists a generated user.
func (f *Factory) CreateUser(overrides ...func(*models.User)) (*models.User, error) {
	user := f.BuildUser(overrides...)
	if err := f.db.Create(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

// BuildPost returns an unsaved prompt for author with a model, purpose and
// tags drawn from the catalog and a creation time within MaxDays.
func (f *Factory) BuildPost(author *models.User, overrides ...func(*models.Post)) *models.Post {
	maxDays := f.opts.MaxDays
	if maxDays <= 0 {
		maxDays = 90
	}
	age := time.Duration(f.rng.Intn(maxDays))*24*time.Hour +
		time.Duration(f.rng.Intn(24*60))*time.Minute

	post := &models.Post{
		AuthorID:  author.ID,
		Title:     strings.TrimSuffix(f.faker.Sentence(5), "."),
		Content:   f.promptBody(),
		Model:     f.pick(f.catalog.Models[1:]),
		Purpose:   f.pick(f.catalog.Purposes),
		IsPublic:  f.rng.Float32() < 0.85,
		CreatedAt: time.Now().Add(-age),
	}
	post.UpdatedAt = post.CreatedAt

	tags := make([]string, 0, 3)
	for i := 0; i < 1+f.rng.Intn(3); i++ {
		tags = append(tags, strings.ToLower(f.faker.BuzzWord()))
	}
	for _, tag := range models.NormalizeTags(tags) {
		if len(tag) <= models.MaxTagLength {
			post.TagRows = append(post.TagRows, models.PostTag{Tag: tag})
		}
	}

	for _, override := range overrides {
		override(post)
	}
	return post
}

// CreatePost persists a generated post together with its tags.
func (f *Factory) CreatePost(author *models.User, overrides ...func(*models.Post)) (*models.Post, error) {
	post := f.BuildPost(author, overrides...)
	if err := f.db.Create(post).Error; err != nil {
		return nil, err
	}
	return post, nil
}

// CreateLike persists a like from user on post. Counters are left for reconciliation.
func (f *Factory) CreateLike(user *models.User, post *models.Post) error {
	return f.db.Create(&models.Like{UserID: user.ID, PostID: post.ID}).Error
}

// CreateBookmark persists a bookmark from user on post.
func (f *Factory) CreateBookmark(user *models.User, post *models.Post) error {
	return f.db.Create(&models.Bookmark{UserID: user.ID, PostID: post.ID}).Error
}

// CreateFollow persists follower -> following.
func (f *Factory) CreateFollow(follower, following *models.User) error {
	return f.db.Create(&models.Follow{FollowerID: follower.ID, FollowingID: following.ID}).Error
}

// CreateViews appends n view events on post attributed to viewer.
func (f *Factory) CreateViews(viewer *models.User, post *models.Post, n int) error {
	if n <= 0 {
		return nil
	}
	views := make([]models.View, n)
	for i := range views {
		views[i] = models.View{PostID: post.ID, UserID: viewer.ID}
	}
	return f.db.Create(&views).Error
}

func (f *Factory) pick(options []string) string {
	if len(options) == 0 {
		return ""
	}
	return options[f.rng.Intn(len(options))]
}

func (f *Factory) promptBody() string {
	role := f.faker.JobTitle()
	task := f.faker.HipsterSentence(8)
	return fmt.Sprintf("You are an experienced %s. %s\n\nConstraints:\n- %s\n- %s",
		strings.ToLower(role), task, f.faker.Sentence(6), f.faker.Sentence(6))
}
