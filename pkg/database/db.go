package database

import (
	"fmt"
	"strings"
	"time"

	"github.com/arnavshah/shiftflow-api/pkg/config"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Document represents the documents table. Every collection of every
// application namespace shares it; Body is the JSON document.
type Document struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	Namespace  string    `gorm:"uniqueIndex:idx_ns_coll_doc;not null" json:"namespace"`
	Collection string    `gorm:"uniqueIndex:idx_ns_coll_doc;not null" json:"collection"`
	DocID      string    `gorm:"uniqueIndex:idx_ns_coll_doc;not null" json:"doc_id"`
	Body       string    `gorm:"type:text;not null" json:"body"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Open connects to postgres when a URL is configured, otherwise to a sqlite file.
func Open(cfg config.DatabaseConfig) (*gorm.DB, error) {
	gormCfg := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	}

	var db *gorm.DB
	var err error
	if cfg.URL != "" {
		db, err = gorm.Open(postgres.New(postgres.Config{
			DSN:                  cfg.URL,
			PreferSimpleProtocol: true,
		}), gormCfg)
	} else {
		db, err = gorm.Open(sqlite.Open(SQLiteDSN(cfg.Path)), gormCfg)
	}
	if err != nil {
		return nil, fmt.Errorf("database: connect: %w", err)
	}

	if cfg.URL == "" {
		// sqlite allows a single writer; one connection queues writers in
		// the pool instead of failing them with "database is locked".
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("database: pool: %w", err)
		}
		sqlDB.SetMaxOpenConns(1)
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

// SQLiteDSN adds a busy timeout and immediate write transactions to path
// unless the caller already set them.
func SQLiteDSN(path string) string {
	params := make([]string, 0, 2)
	if !strings.Contains(path, "_busy_timeout") {
		params = append(params, "_busy_timeout=5000")
	}
	if !strings.Contains(path, "_txlock") {
		params = append(params, "_txlock=immediate")
	}
	if len(params) == 0 {
		return path
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + strings.Join(params, "&")
}

// Migrate creates or updates the schema.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&Document{}); err != nil {
		return fmt.Errorf("database: migrate: %w", err)
	}
	return nil
}
