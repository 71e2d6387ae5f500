// Package session holds the per-browser session state: the upstream auth
// token and the current user id, plus the single pending notification slot.
// The browser itself only ever sees a signed cookie with the session id.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/mshuvalov/storefront/internal/logging"
)

var ErrNotFound = errors.New("session not found")

// Record is one session row. Token and UserID are the two cells the pages
// read; FlashMessage/FlashSeverity/FlashExpiresAt back the notification
// channel. An empty Token means unauthenticated no matter what UserID says.
type Record struct {
	ID     string `gorm:"primaryKey"      json:"id"`
	Token  string `gorm:"not null"        json:"-"`
	UserID int    `gorm:"not null"        json:"user_id"`

	FlashMessage   string `gorm:"not null" json:"-"`
	FlashSeverity  string `gorm:"not null" json:"-"`
	FlashExpiresAt int64  `gorm:"not null" json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Record) TableName() string {
	return "sessions"
}

// Authenticated reports whether a token is present. Any non-empty stored
// value counts; no format or expiry checks are made.
func (r *Record) Authenticated() bool {
	return r.Token != ""
}

// CurrentUserID returns the user id cell. It is treated as absent whenever
// the token is absent, even if a stale id is still stored.
func (r *Record) CurrentUserID() (int, bool) {
	if !r.Authenticated() || r.UserID == 0 {
		return 0, false
	}
	return r.UserID, true
}

// Open connects to the session database. An empty URL falls back to a local
// sqlite file; a postgres:// URL uses the postgres driver.
func Open(databaseURL string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	if databaseURL == "" {
		dialector = sqlite.Open("storefront.db")
	} else {
		dialector = postgres.Open(databaseURL)
	}

	db, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("open session db: %w", err)
	}
	if err := db.AutoMigrate(&Record{}); err != nil {
		return nil, fmt.Errorf("migrate sessions: %w", err)
	}
	return db, nil
}

type Store struct {
	DB *gorm.DB
}

func (s *Store) Create(ctx context.Context) (*Record, error) {
	rec := &Record{ID: uuid.NewString()}
	if err := s.DB.WithContext(ctx).Create(rec).Error; err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	logging.FromContext(ctx).Debug("session created", "session_id", rec.ID)
	return rec, nil
}

func (s *Store) Get(ctx context.Context, id string) (*Record, error) {
	var rec Record
	err := s.DB.WithContext(ctx).Where("id = ?", id).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return &rec, nil
}

// SetSession stores both cells in one write.
func (s *Store) SetSession(ctx context.Context, id, token string, userID int) error {
	res := s.DB.WithContext(ctx).Model(&Record{}).Where("id = ?", id).
		Updates(map[string]any{"token": token, "user_id": userID})
	if res.Error != nil {
		return fmt.Errorf("set session: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Clear removes both cells. Single-statement, so callers never observe a
// token without a user id or vice versa.
func (s *Store) Clear(ctx context.Context, id string) error {
	err := s.DB.WithContext(ctx).Model(&Record{}).Where("id = ?", id).
		Updates(map[string]any{"token": "", "user_id": 0}).Error
	if err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

func (s *Store) Save(ctx context.Context, rec *Record) error {
	if err := s.DB.WithContext(ctx).Save(rec).Error; err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}
