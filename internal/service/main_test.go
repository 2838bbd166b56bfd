package service

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"promptguy/internal/cache"
	"promptguy/internal/config"
	"promptguy/internal/database"
	"promptguy/internal/models"
	"promptguy/internal/repository"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.ConnectWithOptions(&config.Config{
		Env:          "test",
		DBDriver:     "sqlite",
		DBSQLitePath: ":memory:",
	}, database.ConnectOptions{ApplySchema: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })
	return db
}

// useTestCache points the post cache at a fresh miniredis for the test.
func useTestCache(t *testing.T) *miniredis.Miniredis {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cache.SetClient(rdb)
	t.Cleanup(func() {
		cache.SetClient(nil)
		_ = rdb.Close()
	})
	return mr
}

var userSeq int

func seedUser(t *testing.T, db *gorm.DB) *models.User {
	t.Helper()
	userSeq++
	u := &models.User{
		ExternalID: fmt.Sprintf("user_svc%05d", userSeq),
		Username:   fmt.Sprintf("writer%05d", userSeq),
		FirstName:  fmt.Sprintf("Writer%d", userSeq),
	}
	require.NoError(t, db.Create(u).Error)
	return u
}

func seedPost(t *testing.T, db *gorm.DB, author *models.User, title string, public bool) *models.Post {
	t.Helper()
	svc := NewPostService(repository.NewPostRepository(db), repository.NewInteractionRepository(db))
	post, err := svc.CreatePost(context.Background(), CreatePostInput{
		AuthorID: author.ID,
		Title:    title,
		Content:  "content for " + title,
		Model:    "GPT-4",
		Purpose:  "Coding",
		IsPublic: &public,
	})
	require.NoError(t, err)
	return post
}

func assertCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	assert.True(t, models.IsCode(err, code), "want %s, got %v", code, err)
}

// publisherStub records published notifications.
type publisherStub struct {
	mu   sync.Mutex
	sent []*models.Notification
	err  error
}

func (p *publisherStub) PublishNotification(_ context.Context, n *models.Notification) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent = append(p.sent, n)
	return p.err
}

func (p *publisherStub) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.sent)
}

// userRepoStub is a stub for repository.UserRepository.
type userRepoStub struct {
	getByIDFn            func(context.Context, uint) (*models.User, error)
	getByExternalIDFn    func(context.Context, string) (*models.User, error)
	usernameTakenFn      func(context.Context, string, uint) (bool, error)
	createIfAbsentFn     func(context.Context, *models.User) (*models.User, error)
	upsertProfileFn      func(context.Context, *models.User) (*models.User, error)
	updateUsernameFn     func(context.Context, uint, string) (*models.User, error)
	deleteByExternalIDFn func(context.Context, string) (bool, error)
	setAdminFn           func(context.Context, uint, bool) error
	listAdminsFn         func(context.Context) ([]models.User, error)
}

func (s *userRepoStub) GetByID(ctx context.Context, id uint) (*models.User, error) {
	return s.getByIDFn(ctx, id)
}
func (s *userRepoStub) GetByExternalID(ctx context.Context, externalID string) (*models.User, error) {
	return s.getByExternalIDFn(ctx, externalID)
}
func (s *userRepoStub) UsernameTaken(ctx context.Context, username string, excludeID uint) (bool, error) {
	return s.usernameTakenFn(ctx, username, excludeID)
}
func (s *userRepoStub) CreateIfAbsent(ctx context.Context, user *models.User) (*models.User, error) {
	return s.createIfAbsentFn(ctx, user)
}
func (s *userRepoStub) UpsertProfile(ctx context.Context, user *models.User) (*models.User, error) {
	return s.upsertProfileFn(ctx, user)
}
func (s *userRepoStub) UpdateUsername(ctx context.Context, id uint, username string) (*models.User, error) {
	return s.updateUsernameFn(ctx, id, username)
}
func (s *userRepoStub) DeleteByExternalID(ctx context.Context, externalID string) (bool, error) {
	return s.deleteByExternalIDFn(ctx, externalID)
}
func (s *userRepoStub) SetAdmin(ctx context.Context, id uint, admin bool) error {
	return s.setAdminFn(ctx, id, admin)
}
func (s *userRepoStub) ListAdmins(ctx context.Context) ([]models.User, error) {
	return s.listAdminsFn(ctx)
}

func noopUserRepo() *userRepoStub {
	return &userRepoStub{
		getByIDFn: func(_ context.Context, id uint) (*models.User, error) {
			return &models.User{ID: id, Username: models.TemporaryUsername("user_stub")}, nil
		},
		getByExternalIDFn:    func(_ context.Context, _ string) (*models.User, error) { return nil, nil },
		usernameTakenFn:      func(_ context.Context, _ string, _ uint) (bool, error) { return false, nil },
		createIfAbsentFn:     func(_ context.Context, u *models.User) (*models.User, error) { return u, nil },
		upsertProfileFn:      func(_ context.Context, u *models.User) (*models.User, error) { return u, nil },
		updateUsernameFn:     func(_ context.Context, id uint, name string) (*models.User, error) { return &models.User{ID: id, Username: name}, nil },
		deleteByExternalIDFn: func(_ context.Context, _ string) (bool, error) { return true, nil },
		setAdminFn:           func(_ context.Context, _ uint, _ bool) error { return nil },
		listAdminsFn:         func(_ context.Context) ([]models.User, error) { return nil, nil },
	}
}
