package translation

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// MemoryKey scopes translation memory entries to a backend and language pair
type MemoryKey struct {
	Backend    string
	SourceLang string
	TargetLang string
}

// Memory stores raw backend translations between runs
type Memory interface {
	// Lookup returns the stored translation of every text that has one
	Lookup(ctx context.Context, key MemoryKey, texts []string) (map[string]string, error)

	// Store records translations, replacing existing entries
	Store(ctx context.Context, key MemoryKey, translations map[string]string) error

	Close() error
}

// SQLiteMemory is a Memory backed by a local sqlite database
type SQLiteMemory struct {
	db *sql.DB
}

// OpenSQLiteMemory opens or creates the translation memory at path
func OpenSQLiteMemory(path string) (*SQLiteMemory, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create translation memory directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open translation memory: %w", err)
	}
	// Serialize writers from concurrent batch workers
	db.SetMaxOpenConns(1)

	if err := createMemoryTables(db); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteMemory{db: db}, nil
}

func createMemoryTables(db *sql.DB) error {
	query := `CREATE TABLE IF NOT EXISTS translation_memory (
		backend     TEXT NOT NULL,
		source_lang TEXT NOT NULL,
		target_lang TEXT NOT NULL,
		source_hash TEXT NOT NULL,
		source_text TEXT NOT NULL,
		target_text TEXT NOT NULL,
		created_at  INTEGER NOT NULL,
		PRIMARY KEY (backend, source_lang, target_lang, source_hash)
	)`
	if _, err := db.Exec(query); err != nil {
		return fmt.Errorf("failed to create translation memory table: %w", err)
	}
	return nil
}

func hashText(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// Lookup returns stored translations for texts
func (m *SQLiteMemory) Lookup(ctx context.Context, key MemoryKey, texts []string) (map[string]string, error) {
	found := make(map[string]string)
	if len(texts) == 0 {
		return found, nil
	}

	stmt, err := m.db.PrepareContext(ctx, `SELECT source_text, target_text FROM translation_memory
		WHERE backend = ? AND source_lang = ? AND target_lang = ? AND source_hash = ?`)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare memory lookup: %w", err)
	}
	defer stmt.Close()

	for _, text := range texts {
		var source, target string
		err := stmt.QueryRowContext(ctx, key.Backend, key.SourceLang, key.TargetLang, hashText(text)).Scan(&source, &target)
		if err == sql.ErrNoRows {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to query translation memory: %w", err)
		}
		// Guard against hash collisions
		if source == text {
			found[text] = target
		}
	}

	return found, nil
}

// Store records translations in one transaction
func (m *SQLiteMemory) Store(ctx context.Context, key MemoryKey, translations map[string]string) error {
	if len(translations) == 0 {
		return nil
	}

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin memory transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO translation_memory
		(backend, source_lang, target_lang, source_hash, source_text, target_text, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare memory insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().Unix()
	for source, target := range translations {
		if _, err := stmt.ExecContext(ctx, key.Backend, key.SourceLang, key.TargetLang, hashText(source), source, target, now); err != nil {
			return fmt.Errorf("failed to store translation: %w", err)
		}
	}

	return tx.Commit()
}

// Count returns the number of stored entries
func (m *SQLiteMemory) Count(ctx context.Context) (int, error) {
	var n int
	err := m.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM translation_memory").Scan(&n)
	return n, err
}

// Close closes the database
func (m *SQLiteMemory) Close() error {
	return m.db.Close()
}
