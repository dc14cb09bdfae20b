package files

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const createTableSQL = `
CREATE TABLE IF NOT EXISTS uploads (
    id          TEXT PRIMARY KEY,
    name        TEXT NOT NULL,
    local_path  TEXT NOT NULL,
    size_bytes  INTEGER NOT NULL,
    mime_type   TEXT NOT NULL,
    uploaded_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_uploads_uploaded_at ON uploads(uploaded_at);
`

// SQLiteStore persists the file registry in a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the registry database at dbPath.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	if _, err := db.Exec(createTableSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) LoadAll() ([]UploadedFile, error) {
	rows, err := s.db.Query(`
		SELECT id, name, local_path, size_bytes, mime_type, uploaded_at
		FROM uploads ORDER BY uploaded_at`)
	if err != nil {
		return nil, fmt.Errorf("load uploads: %w", err)
	}
	defer rows.Close()

	var out []UploadedFile
	for rows.Next() {
		var f UploadedFile
		var uploadedAt string
		if err := rows.Scan(&f.ID, &f.Name, &f.LocalPath, &f.Size, &f.MimeType, &uploadedAt); err != nil {
			return nil, fmt.Errorf("scan upload: %w", err)
		}
		f.UploadedAt, _ = time.Parse(time.RFC3339Nano, uploadedAt)
		out = append(out, f)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Put(f UploadedFile) error {
	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO uploads (id, name, local_path, size_bytes, mime_type, uploaded_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		f.ID, f.Name, f.LocalPath, f.Size, f.MimeType,
		f.UploadedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("save upload: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Delete(id string) error {
	if _, err := s.db.Exec("DELETE FROM uploads WHERE id = ?", id); err != nil {
		return fmt.Errorf("delete upload: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Clear() error {
	if _, err := s.db.Exec("DELETE FROM uploads"); err != nil {
		return fmt.Errorf("clear uploads: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
