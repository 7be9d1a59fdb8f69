package history

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// Entry 会话历史中的一条记录
// Entry is one row of the session chat history log.
type Entry struct {
	Seq       int64
	Kind      string
	Message   string
	CreatedAt string
}

// Store 会话级聊天历史日志。桥接层把每条输出/错误/警告/助手消息镜像到这里，
// 与被包装工具自身的历史语义保持一致。
// Store is the session-scoped chat history log. The bridge mirrors every
// output/error/warning/assistant message into it, matching the wrapped
// tool's own history semantics.
type Store interface {
	Append(kind, message string) error
	Entries() ([]Entry, error)
	Close() error
}

// SQLiteStore 基于 SQLite (WAL 模式) 的历史日志实现
// SQLiteStore implements Store using SQLite with WAL mode.
type SQLiteStore struct {
	db      *sql.DB
	session string
	path    string
}

// NewSQLiteStore 创建并初始化一个会话的历史数据库
// NewSQLiteStore creates and initializes the history database for one session.
func NewSQLiteStore(dbPath, sessionID string) (*SQLiteStore, error) {
	dbPath = strings.TrimSpace(dbPath)
	if dbPath == "" {
		return nil, fmt.Errorf("history db path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// 启用 WAL 模式和优化 PRAGMA / Enable WAL and performance PRAGMAs
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("exec %q: %w", p, err)
		}
	}

	store := &SQLiteStore{db: db, session: sessionID, path: dbPath}
	if err := store.ensureSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) ensureSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS entries (
		seq        INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		kind       TEXT NOT NULL,
		message    TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_entries_session ON entries(session_id, seq);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Append 追加一条历史记录
// Append writes one history entry.
func (s *SQLiteStore) Append(kind, message string) error {
	_, err := s.db.Exec(
		`INSERT INTO entries (session_id, kind, message, created_at) VALUES (?, ?, ?, ?)`,
		s.session, kind, message, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("append history: %w", err)
	}
	return nil
}

// Entries 按写入顺序返回本会话的全部记录
// Entries returns all entries for this session in write order.
func (s *SQLiteStore) Entries() ([]Entry, error) {
	rows, err := s.db.Query(
		`SELECT seq, kind, message, created_at FROM entries WHERE session_id = ? ORDER BY seq`,
		s.session,
	)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Seq, &e.Kind, &e.Message, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Nop 丢弃所有写入的历史实现，用于没有历史目录的场景
// Nop discards all writes; used when no history location is configured.
type Nop struct{}

func (Nop) Append(kind, message string) error { return nil }
func (Nop) Entries() ([]Entry, error)         { return nil, nil }
func (Nop) Close() error                      { return nil }
