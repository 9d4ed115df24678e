package database

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"

	"github.com/franckalain/traypositions/internal/models"
	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaFS embed.FS

// SQLiteDB keeps the upload registry the retention sweep relies on
type SQLiteDB struct {
	db *sql.DB
}

// NewSQLiteDB creates a new SQLite database connection
func NewSQLiteDB(dbPath string) (*SQLiteDB, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}

	// WAL lets the sweeper read while uploads are written
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("error enabling WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("error setting busy timeout: %w", err)
	}

	if err := initializeSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("error initializing schema: %w", err)
	}

	return &SQLiteDB{db: db}, nil
}

func initializeSchema(db *sql.DB) error {
	schemaBytes, err := schemaFS.ReadFile("schema.sql")
	if err != nil {
		return fmt.Errorf("error reading schema file: %w", err)
	}

	if _, err := db.Exec(string(schemaBytes)); err != nil {
		return fmt.Errorf("error executing schema: %w", err)
	}
	return nil
}

// SaveUpload records a stored upload
func (s *SQLiteDB) SaveUpload(ctx context.Context, upload *models.Upload) error {
	query := `
		INSERT INTO uploads (name, original_name, url, created_at)
		VALUES (?, ?, ?, ?)
	`

	if upload.CreatedAt.IsZero() {
		upload.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, query,
		upload.Name, upload.OriginalName, upload.URL, upload.CreatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("error saving upload %s: %w", upload.Name, err)
	}
	return nil
}

// ExpiredUploads returns up to limit uploads created before the cutoff, oldest first
func (s *SQLiteDB) ExpiredUploads(ctx context.Context, before time.Time, limit int) ([]*models.Upload, error) {
	query := `
		SELECT name, original_name, url, created_at
		FROM uploads
		WHERE created_at < ?
		ORDER BY created_at ASC
		LIMIT ?
	`

	rows, err := s.db.QueryContext(ctx, query, before.UnixNano(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []*models.Upload
	for rows.Next() {
		upload, err := scanUpload(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, upload)
	}
	return results, rows.Err()
}

// DeleteUpload forgets an upload
func (s *SQLiteDB) DeleteUpload(ctx context.Context, name string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM uploads WHERE name = ?`, name)
	return err
}

// Close closes the database connection
func (s *SQLiteDB) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanUpload(row scanner) (*models.Upload, error) {
	var upload models.Upload
	var createdAt int64
	if err := row.Scan(&upload.Name, &upload.OriginalName, &upload.URL, &createdAt); err != nil {
		return nil, err
	}
	upload.CreatedAt = time.Unix(0, createdAt).UTC()
	return &upload, nil
}
