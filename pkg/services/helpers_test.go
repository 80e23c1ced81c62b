package services_test

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/adampresley/proofingdesk/pkg/database"
	"github.com/adampresley/proofingdesk/pkg/models"
	"github.com/adampresley/proofingdesk/pkg/services"
	"github.com/rfberaldo/sqlz"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fakeAssets struct {
	mu      sync.Mutex
	deleted []string
}

func (a *fakeAssets) Delete(keys []string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.deleted = append(a.deleted, keys...)
	return nil
}

func (a *fakeAssets) EnsureBucket() error                         { return nil }
func (a *fakeAssets) Get(key string) (io.ReadCloser, error)       { return nil, fmt.Errorf("not found") }
func (a *fakeAssets) ListImages(string) ([]services.Asset, error) { return nil, nil }
func (a *fakeAssets) Put(string, io.Reader) error                 { return nil }
func (a *fakeAssets) Stat(string) (*services.Asset, error)        { return nil, nil }
func (a *fakeAssets) URL(key string) (string, error)              { return "https://assets.test/" + key, nil }

type fixture struct {
	db            *sqlz.DB
	clock         *fakeClock
	assets        *fakeAssets
	tenant        *models.Tenant
	otherTenant   *models.Tenant
	access        services.AccessService
	notifications services.NotificationService
	sessions      services.SessionService
	albums        services.AlbumService
	sweeper       *services.DeadlineSweeper
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db, err := database.Open("file:" + filepath.Join(t.TempDir(), "proofing.db"))
	require.NoError(t, err)

	f := &fixture{
		db:     db,
		clock:  &fakeClock{now: time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)},
		assets: &fakeAssets{},
	}

	tenants := services.NewTenantService(services.TenantServiceConfig{DB: db})

	f.tenant, err = tenants.Create(context.Background(), "studio-a", "Studio A", "a@example.com", "secret-a")
	require.NoError(t, err)

	f.otherTenant, err = tenants.Create(context.Background(), "studio-b", "Studio B", "b@example.com", "secret-b")
	require.NoError(t, err)

	f.access = services.NewAccessService(services.AccessServiceConfig{DB: db})
	f.notifications = services.NewNotificationService(services.NotificationServiceConfig{DB: db})

	f.sessions = services.NewSessionService(services.SessionServiceConfig{
		AccessService: f.access,
		Assets:        f.assets,
		DB:            db,
		Notifications: f.notifications,
		Now:           f.clock.Now,
	})

	f.albums = services.NewAlbumService(services.AlbumServiceConfig{
		AccessService: f.access,
		Assets:        f.assets,
		DB:            db,
		Notifications: f.notifications,
		Now:           f.clock.Now,
	})

	f.sweeper = services.NewDeadlineSweeper(services.DeadlineSweeperConfig{
		DB:            db,
		Notifications: f.notifications,
		Now:           f.clock.Now,
	})

	return f
}

func (f *fixture) newSession(t *testing.T, input services.NewSession, photos int) *models.Session {
	t.Helper()
	ctx := context.Background()

	session, err := f.sessions.Create(ctx, f.tenant.ID, input)
	require.NoError(t, err)

	for i := 0; i < photos; i++ {
		_, err = f.sessions.AddPhoto(ctx, f.tenant.ID, session.ID, services.NewPhoto{
			OriginalKey: fmt.Sprintf("%d/%d/originals/IMG_%04d.jpg", f.tenant.ID, session.ID, i),
		})
		require.NoError(t, err)
	}

	session, err = f.sessions.Get(ctx, f.tenant.ID, session.ID)
	require.NoError(t, err)

	return session
}

func (f *fixture) newSentAlbum(t *testing.T, sheets int) *models.Album {
	t.Helper()
	ctx := context.Background()

	album, err := f.albums.Create(ctx, f.tenant.ID, services.NewAlbum{Name: "Wedding album", ClientRef: "Ana & Bruno"})
	require.NoError(t, err)

	for i := 0; i < sheets; i++ {
		_, err = f.albums.AddSheet(ctx, f.tenant.ID, album.ID, services.NewSheet{
			ImageKey: fmt.Sprintf("%d/albums/%d/sheet-%02d.jpg", f.tenant.ID, album.ID, i+1),
		})
		require.NoError(t, err)
	}

	album, err = f.albums.Send(ctx, f.tenant.ID, album.ID)
	require.NoError(t, err)

	return album
}

func (f *fixture) notificationsFor(t *testing.T, sessionID uint, notificationType models.NotificationType) []models.Notification {
	t.Helper()

	all, err := f.notifications.List(context.Background(), f.tenant.ID, 1000)
	require.NoError(t, err)

	result := []models.Notification{}

	for _, n := range all {
		if n.Type == notificationType && n.SessionID != nil && *n.SessionID == sessionID {
			result = append(result, n)
		}
	}

	return result
}

func (f *fixture) albumNotifications(t *testing.T, albumID uint, notificationType models.NotificationType) []models.Notification {
	t.Helper()

	all, err := f.notifications.List(context.Background(), f.tenant.ID, 1000)
	require.NoError(t, err)

	result := []models.Notification{}

	for _, n := range all {
		if n.Type == notificationType && n.AlbumID != nil && *n.AlbumID == albumID {
			result = append(result, n)
		}
	}

	return result
}

func ptr[T any](v T) *T {
	return &v
}
