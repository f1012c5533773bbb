package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	aimemerrors "github.com/lexlapax/aimem/pkg/errors"
	"github.com/lexlapax/aimem/pkg/log"
	"github.com/lexlapax/aimem/pkg/store"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrFTS5Unavailable is returned by Open when the linked SQLite lacks
// the FTS5 module. mattn/go-sqlite3 only compiles it in under the
// sqlite_fts5 build tag.
var ErrFTS5Unavailable = errors.New("sqlite built without FTS5 support, rebuild with -tags sqlite_fts5")

// Store implements the store.Store interface using a SQLite database
// with an FTS5 full-text index kept in sync by triggers.
type Store struct {
	db *sqlx.DB
}

// Open opens (creating if necessary) the SQLite database at path and
// runs the embedded schema migrations.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sqlx.Connect("sqlite3", path+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite allows a single writer; one connection avoids lock churn.
	db.SetMaxOpenConns(1)

	// The schema depends on FTS5; fail up front with a clear error
	// instead of an obscure migration failure.
	var fts5 int
	if err := db.Get(&fts5, `SELECT sqlite_compileoption_used('ENABLE_FTS5')`); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to inspect sqlite build: %w", err)
	}
	if fts5 == 0 {
		db.Close()
		return nil, ErrFTS5Unavailable
	}

	if err := runMigrations(db.DB); err != nil {
		db.Close()
		return nil, err
	}

	log.Debug("Opened memory store", "path", path)
	return &Store{db: db}, nil
}

// runMigrations applies the embedded migrations to the database.
func runMigrations(db *sql.DB) error {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to load migrations: %w", err)
	}

	driver, err := migratesqlite.WithInstance(db, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// CreateMemory inserts a memory together with its sparse vector and
// the updated index state in one transaction.
func (s *Store) CreateMemory(ctx context.Context, record *store.MemoryRecord, vector []byte, indexState []byte) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if record.Category == "" {
		record.Category = "general"
	}

	result, err := tx.ExecContext(ctx,
		`INSERT INTO memories (content, category, importance, source, tags)
		 VALUES (?, ?, ?, ?, ?)`,
		record.Content, record.Category, record.Importance, record.Source, record.Tags,
	)
	if err != nil {
		return fmt.Errorf("failed to insert memory: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get inserted id: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO memory_vectors (memory_id, vector) VALUES (?, ?)`,
		id, string(vector),
	); err != nil {
		return fmt.Errorf("failed to persist vector: %w", err)
	}

	if err := saveIndexStateTx(ctx, tx, indexState); err != nil {
		return err
	}

	var inserted store.MemoryRecord
	if err := tx.GetContext(ctx, &inserted, `SELECT * FROM memories WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to read back memory: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}

	*record = inserted
	return nil
}

// saveIndexStateTx upserts the singleton TF-IDF index state row.
func saveIndexStateTx(ctx context.Context, tx *sqlx.Tx, indexState []byte) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO tfidf_index (id, data) VALUES (1, ?)
		 ON CONFLICT(id) DO UPDATE SET data = excluded.data`,
		string(indexState),
	)
	if err != nil {
		return fmt.Errorf("failed to persist index state: %w", err)
	}
	return nil
}

// GetMemory fetches one memory by id.
func (s *Store) GetMemory(ctx context.Context, id int64) (*store.MemoryRecord, error) {
	var record store.MemoryRecord
	err := s.db.GetContext(ctx, &record, `SELECT * FROM memories WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, aimemerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get memory: %w", err)
	}
	return &record, nil
}

// GetMemoriesByIDs fetches the given memories keyed by id.
func (s *Store) GetMemoriesByIDs(ctx context.Context, ids []int64) (map[int64]*store.MemoryRecord, error) {
	result := make(map[int64]*store.MemoryRecord, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	query, args, err := sqlx.In(`SELECT * FROM memories WHERE id IN (?)`, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	var records []store.MemoryRecord
	if err := s.db.SelectContext(ctx, &records, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to get memories: %w", err)
	}
	for i := range records {
		result[records[i].ID] = &records[i]
	}
	return result, nil
}

// ListMemories returns all memories ordered by id.
func (s *Store) ListMemories(ctx context.Context) ([]store.MemoryRecord, error) {
	var records []store.MemoryRecord
	if err := s.db.SelectContext(ctx, &records, `SELECT * FROM memories ORDER BY id`); err != nil {
		return nil, fmt.Errorf("failed to list memories: %w", err)
	}
	return records, nil
}

// DeleteMemory removes a memory; derived vector rows and entity links
// cascade via foreign keys.
func (s *Store) DeleteMemory(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM memories WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete memory: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return aimemerrors.ErrNotFound
	}
	return nil
}

// UpdateImportance sets a memory's importance.
func (s *Store) UpdateImportance(ctx context.Context, id int64, importance float64) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE memories SET importance = ? WHERE id = ?`, importance, id)
	if err != nil {
		return fmt.Errorf("failed to update importance: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return aimemerrors.ErrNotFound
	}
	return nil
}

// TouchMemories updates last_accessed and increments access_count for
// the given memories.
func (s *Store) TouchMemories(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	query, args, err := sqlx.In(
		`UPDATE memories
		 SET last_accessed = datetime('now'), access_count = access_count + 1
		 WHERE id IN (?)`, ids)
	if err != nil {
		return fmt.Errorf("failed to build query: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, s.db.Rebind(query), args...); err != nil {
		return fmt.Errorf("failed to touch memories: %w", err)
	}
	return nil
}

// LoadIndexState returns the persisted TF-IDF index state, or nil when
// none has been stored yet.
func (s *Store) LoadIndexState(ctx context.Context) ([]byte, error) {
	var data string
	err := s.db.GetContext(ctx, &data, `SELECT data FROM tfidf_index WHERE id = 1`)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load index state: %w", err)
	}
	return []byte(data), nil
}

// LoadVectors returns all sparse vector rows joined with their
// memories, filtered by category and importance floor.
func (s *Store) LoadVectors(ctx context.Context, category string, minImportance float64) ([]store.VectorRow, error) {
	query := `SELECT m.*, mv.vector AS vector
		FROM memory_vectors mv
		JOIN memories m ON m.id = mv.memory_id
		WHERE m.importance >= ?`
	params := []interface{}{minImportance}
	if category != "" {
		query += ` AND m.category = ?`
		params = append(params, category)
	}

	var rows []store.VectorRow
	if err := s.db.SelectContext(ctx, &rows, query, params...); err != nil {
		return nil, fmt.Errorf("failed to load vectors: %w", err)
	}
	return rows, nil
}

// ReplaceVectors overwrites every sparse vector row and the index
// state in one transaction. Old rows are discarded first so that a
// rebuild is all-or-nothing.
func (s *Store) ReplaceVectors(ctx context.Context, vectors map[int64][]byte, indexState []byte) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM memory_vectors`); err != nil {
		return fmt.Errorf("failed to clear vectors: %w", err)
	}

	for id, vector := range vectors {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO memory_vectors (memory_id, vector) VALUES (?, ?)`,
			id, string(vector),
		); err != nil {
			return fmt.Errorf("failed to insert vector for memory %d: %w", id, err)
		}
	}

	if err := saveIndexStateTx(ctx, tx, indexState); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

// ApplyDecay attenuates decay_score for every memory idle for more
// than a day. The tier table is rendered into a CASE expression so the
// sweep is a single UPDATE.
func (s *Store) ApplyDecay(ctx context.Context, tiers []store.DecayTier) (int64, error) {
	if len(tiers) == 0 {
		return 0, nil
	}

	caseExpr := "CASE\n"
	for _, tier := range tiers[:len(tiers)-1] {
		caseExpr += fmt.Sprintf(
			"WHEN importance >= %g THEN MAX(%g, decay_score * %g)\n",
			tier.MinImportance, tier.Floor, tier.Factor)
	}
	last := tiers[len(tiers)-1]
	caseExpr += fmt.Sprintf("ELSE MAX(%g, decay_score * %g)\nEND", last.Floor, last.Factor)

	result, err := s.db.ExecContext(ctx, fmt.Sprintf(
		`UPDATE memories SET decay_score = %s
		 WHERE julianday('now') - julianday(last_accessed) > 1`, caseExpr))
	if err != nil {
		return 0, fmt.Errorf("failed to apply decay: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return affected, nil
}

// CountMemories returns the total number of memories.
func (s *Store) CountMemories(ctx context.Context) (int, error) {
	var count int
	if err := s.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM memories`); err != nil {
		return 0, fmt.Errorf("failed to count memories: %w", err)
	}
	return count, nil
}

// CountByCategory returns memory counts grouped by category.
func (s *Store) CountByCategory(ctx context.Context) ([]store.CategoryCount, error) {
	var counts []store.CategoryCount
	err := s.db.SelectContext(ctx, &counts,
		`SELECT category, COUNT(*) AS count FROM memories GROUP BY category ORDER BY category`)
	if err != nil {
		return nil, fmt.Errorf("failed to count by category: %w", err)
	}
	return counts, nil
}

// CountEntities returns the total number of entities.
func (s *Store) CountEntities(ctx context.Context) (int, error) {
	var count int
	if err := s.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM entities`); err != nil {
		return 0, fmt.Errorf("failed to count entities: %w", err)
	}
	return count, nil
}
