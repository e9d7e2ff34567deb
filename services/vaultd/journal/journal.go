package journal

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"cantorfi/core/events"
)

const (
	defaultLimit = 100
	maxLimit     = 1000
)

// Entry is a committed event persisted for audit and replay.
type Entry struct {
	ID         uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	EventID    uuid.UUID `gorm:"type:uuid;uniqueIndex" json:"eventId"`
	Type       string    `gorm:"index" json:"type"`
	Subject    string    `gorm:"index" json:"subject,omitempty"`
	Attributes string    `gorm:"type:text" json:"-"`
	CreatedAt  time.Time `json:"createdAt"`
}

// TableName pins the table regardless of the gorm naming strategy.
func (Entry) TableName() string { return "vault_events" }

// Decoded returns the stored attribute map.
func (e Entry) Decoded() map[string]string {
	out := map[string]string{}
	if e.Attributes != "" {
		_ = json.Unmarshal([]byte(e.Attributes), &out)
	}
	return out
}

// Filter narrows a List query. Subject matches the vault or pool address.
type Filter struct {
	Type    string
	Subject string
	After   uint64
	Limit   int
}

// Journal appends every committed runtime event to a SQL table.
type Journal struct {
	db     *gorm.DB
	logger *slog.Logger
	now    func() time.Time
}

// Open connects to the database named by dsn. sqlite:// paths use the pure-Go
// driver, postgres:// URLs are handed to pgx unchanged.
func Open(dsn string, log *slog.Logger) (*Journal, error) {
	dialector, err := dialectorFor(dsn)
	if err != nil {
		return nil, err
	}
	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("journal: open: %w", err)
	}
	return New(db, log)
}

// New wraps an existing connection and migrates the schema.
func New(db *gorm.DB, log *slog.Logger) (*Journal, error) {
	if db == nil {
		return nil, fmt.Errorf("journal: database required")
	}
	if log == nil {
		log = slog.Default()
	}
	if err := db.AutoMigrate(&Entry{}); err != nil {
		return nil, fmt.Errorf("journal: migrate: %w", err)
	}
	return &Journal{db: db, logger: log, now: time.Now}, nil
}

func dialectorFor(dsn string) (gorm.Dialector, error) {
	switch {
	case strings.HasPrefix(dsn, "sqlite://"):
		return sqlite.Open(strings.TrimPrefix(dsn, "sqlite://")), nil
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return postgres.Open(dsn), nil
	default:
		return nil, fmt.Errorf("journal: unsupported dsn %q", dsn)
	}
}

// Emit implements events.Emitter. Insert failures are logged; the state
// transition that produced the event has already committed.
func (j *Journal) Emit(evt events.Event) {
	if j == nil || evt == nil {
		return
	}
	if err := j.Append(context.Background(), evt); err != nil {
		j.logger.Error("journal append failed", "type", evt.EventType(), "error", err)
	}
}

// Append stores a single event.
func (j *Journal) Append(ctx context.Context, evt events.Event) error {
	rendered := events.Render(evt)
	if rendered == nil {
		return nil
	}
	attrs, err := json.Marshal(rendered.Attributes)
	if err != nil {
		return fmt.Errorf("journal: encode attributes: %w", err)
	}
	subject := rendered.Attribute("vault")
	if subject == "" {
		subject = rendered.Attribute("pool")
	}
	entry := Entry{
		EventID:    uuid.New(),
		Type:       rendered.Type,
		Subject:    strings.ToLower(subject),
		Attributes: string(attrs),
		CreatedAt:  j.now().UTC(),
	}
	return j.db.WithContext(ctx).Create(&entry).Error
}

// List returns entries in insertion order.
func (j *Journal) List(ctx context.Context, filter Filter) ([]Entry, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	query := j.db.WithContext(ctx).Model(&Entry{}).Where("id > ?", filter.After)
	if filter.Type != "" {
		query = query.Where("type = ?", filter.Type)
	}
	if filter.Subject != "" {
		query = query.Where("subject = ?", strings.ToLower(filter.Subject))
	}
	var entries []Entry
	if err := query.Order("id asc").Limit(limit).Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("journal: list: %w", err)
	}
	return entries, nil
}

// Close releases the underlying connection pool.
func (j *Journal) Close() error {
	if j == nil {
		return nil
	}
	sqlDB, err := j.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
