package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"clipkeep/internal/apperr"
	"clipkeep/internal/logging"

	_ "modernc.org/sqlite"
)

// SQLiteStore 基于 SQLite (WAL 模式) 的持久化实现
// SQLiteStore implements Store using SQLite with WAL mode
type SQLiteStore struct {
	// 写连接池只有一个连接，所有写事务串行
	// the writer pool holds a single connection so write transactions serialize
	db *sql.DB
	// 读连接池可并发
	// the reader pool serves concurrent queries
	rdb  *sql.DB
	path string

	logger logging.Logger
	now    func() time.Time
	policy TouchPolicy

	mu     sync.RWMutex
	images ImageReleaser
}

// WithLogger 设置日志
// WithLogger sets the logger used for post-commit cleanup warnings
func WithLogger(l logging.Logger) Option {
	return func(s *SQLiteStore) { s.logger = l.WithComponent("storage") }
}

// WithClock 注入时钟（测试用）
// WithClock injects the clock used for timestamps and retention cutoffs
func WithClock(now func() time.Time) Option {
	return func(s *SQLiteStore) { s.now = now }
}

// WithTouchPolicy 设置重复复制策略
// WithTouchPolicy sets how repeat copies are handled
func WithTouchPolicy(p TouchPolicy) Option {
	return func(s *SQLiteStore) { s.policy = p }
}

var pragmas = []string{
	"busy_timeout(5000)",
	"journal_mode(WAL)",
	"synchronous(NORMAL)",
	"foreign_keys(1)",
}

func dsn(path string, extra ...string) string {
	params := make([]string, 0, len(pragmas)+len(extra))
	for _, p := range pragmas {
		params = append(params, "_pragma="+p)
	}
	params = append(params, extra...)
	return "file:" + path + "?" + strings.Join(params, "&")
}

// NewSQLiteStore 创建并初始化 SQLite 数据库
// NewSQLiteStore creates and initializes a SQLite database
func NewSQLiteStore(dbPath string, opts ...Option) (*SQLiteStore, error) {
	dbPath = strings.TrimSpace(dbPath)
	if dbPath == "" {
		return nil, fmt.Errorf("sqlite db path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o700); err != nil {
		return nil, apperr.Storage("create db directory", err)
	}

	db, err := sql.Open("sqlite", dsn(dbPath, "_txlock=immediate"))
	if err != nil {
		return nil, apperr.Storage("open sqlite", err)
	}
	db.SetMaxOpenConns(1)

	store := &SQLiteStore{
		db:     db,
		path:   dbPath,
		logger: logging.Nop(),
		now:    time.Now,
		policy: TouchBump,
	}
	for _, opt := range opts {
		opt(store)
	}

	// 先在写连接上迁移，WAL 模式随后对读连接生效
	// migrate on the writer first so WAL is in effect before readers open
	if err := store.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, apperr.Storage("ensure schema", err)
	}

	rdb, err := sql.Open("sqlite", dsn(dbPath, "_pragma=query_only(1)"))
	if err != nil {
		_ = db.Close()
		return nil, apperr.Storage("open sqlite reader", err)
	}
	rdb.SetMaxOpenConns(4)
	store.rdb = rdb
	return store, nil
}

// AttachImages 设置图片释放器；行删除提交后调用
// AttachImages sets the releaser called after row deletions commit
func (s *SQLiteStore) AttachImages(r ImageReleaser) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.images = r
}

// Path 返回数据库文件路径 / Path returns the database file path
func (s *SQLiteStore) Path() string {
	return s.path
}

// Close 关闭数据库连接 / Close the database connections
func (s *SQLiteStore) Close() error {
	var firstErr error
	if s.rdb != nil {
		if err := s.rdb.Close(); err != nil {
			firstErr = err
		}
	}
	if s.db != nil {
		if err := s.db.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// releaseImages 删除图片文件，失败只记录日志
// releaseImages deletes image files; failures are logged, never returned
func (s *SQLiteStore) releaseImages(ctx context.Context, refs []string) {
	if len(refs) == 0 {
		return
	}
	s.mu.RLock()
	images := s.images
	s.mu.RUnlock()
	if images == nil {
		s.logger.Warn(ctx, nil, "no image releaser attached; image files left behind", "count", len(refs))
		return
	}
	for _, ref := range refs {
		if err := images.Delete(ref); err != nil {
			s.logger.Warn(ctx, err, "release image file", "ref", ref)
		}
	}
}

// --- Helpers ---

func (s *SQLiteStore) nowUnix() int64 {
	return s.now().Unix()
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
