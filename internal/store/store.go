package store

import (
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	_ "github.com/jackc/pgx/v5/stdlib" // driver: pgx
	_ "modernc.org/sqlite"             // driver: sqlite
)

// Driver selects the backing database.
type Driver string

const (
	DriverSQLite   Driver = "sqlite"
	DriverPostgres Driver = "postgres"
)

// Collection topics for change subscriptions.
const (
	TopicTeachers   = "teachers"
	TopicStudents   = "students"
	TopicExams      = "exams"
	TopicQuestions  = "questions"
	TopicAllResults = "all_results"
)

// StudentResultsTopic is the per-student private results namespace topic.
func StudentResultsTopic(subjectID string) string {
	return "results/" + subjectID
}

// Store is the data backend: a set of collections with create/read/update/
// delete access plus per-collection change notification, so callers can keep
// live mirrors the way the original backend's push subscriptions did.
type Store struct {
	db *sql.DB

	subMu   sync.Mutex
	subSeq  int
	subs    map[string]map[int]func()
	closing bool
}

// New opens the database for the given driver and ensures the schema exists.
// An empty dsn falls back to a compiled-in default.
func New(driver Driver, dsn string) (*Store, error) {
	var drvName string
	switch driver {
	case DriverSQLite:
		drvName = "sqlite"
		if dsn == "" {
			dsn = "exambuilder.db"
		}
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		dsn += sep + "_journal_mode=WAL&_busy_timeout=5000"
	case DriverPostgres:
		drvName = "pgx"
		if dsn == "" {
			dsn = "postgres://localhost:5432/exambuilder?sslmode=disable"
		}
	default:
		return nil, fmt.Errorf("unsupported driver: %s", driver)
	}

	db, err := sql.Open(drvName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &Store{db: db, subs: make(map[string]map[int]func())}
	if err := s.migrate(driver); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	s.subMu.Lock()
	s.closing = true
	s.subs = make(map[string]map[int]func())
	s.subMu.Unlock()
	return s.db.Close()
}

// Subscribe registers fn to run after every successful write to topic and
// returns the matching unsubscribe. The callback runs on the writer's
// goroutine; subscribers are expected to re-read the collection snapshot.
func (s *Store) Subscribe(topic string, fn func()) func() {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	s.subSeq++
	id := s.subSeq
	if s.subs[topic] == nil {
		s.subs[topic] = make(map[int]func())
	}
	s.subs[topic][id] = fn
	return func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		delete(s.subs[topic], id)
	}
}

func (s *Store) notify(topic string) {
	s.subMu.Lock()
	fns := make([]func(), 0, len(s.subs[topic]))
	if !s.closing {
		for _, fn := range s.subs[topic] {
			fns = append(fns, fn)
		}
	}
	s.subMu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

func (s *Store) migrate(driver Driver) error {
	schema := schemaSQLite
	if driver == DriverPostgres {
		schema = schemaPostgres
	}
	_, err := s.db.Exec(schema)
	return err
}

const schemaSQLite = `
	CREATE TABLE IF NOT EXISTS teachers (
		id TEXT PRIMARY KEY,
		email TEXT NOT NULL,
		password_hash TEXT NOT NULL,
		name TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS students (
		id TEXT PRIMARY KEY,
		email TEXT NOT NULL,
		password_hash TEXT NOT NULL,
		name TEXT NOT NULL,
		subject_id TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS exams (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		time_limit INTEGER NOT NULL DEFAULT 30,
		active INTEGER NOT NULL DEFAULT 1,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS questions (
		id TEXT PRIMARY KEY,
		exam_id TEXT NOT NULL,
		topic TEXT NOT NULL DEFAULT '',
		text TEXT NOT NULL,
		options_json TEXT NOT NULL,
		correct_id TEXT NOT NULL,
		explanation TEXT NOT NULL DEFAULT '',
		order_key INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS results (
		id TEXT PRIMARY KEY,
		subject_id TEXT NOT NULL,
		exam_id TEXT NOT NULL,
		exam_title TEXT NOT NULL,
		score INTEGER NOT NULL,
		total INTEGER NOT NULL,
		percentage INTEGER NOT NULL,
		created_at INTEGER NOT NULL,
		answers_json TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS all_results (
		id TEXT PRIMARY KEY,
		exam_id TEXT NOT NULL,
		exam_title TEXT NOT NULL,
		score INTEGER NOT NULL,
		total INTEGER NOT NULL,
		percentage INTEGER NOT NULL,
		created_at INTEGER NOT NULL,
		answers_json TEXT NOT NULL DEFAULT '',
		student_name TEXT NOT NULL DEFAULT '',
		subject_id TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS sessions (
		token TEXT PRIMARY KEY,
		doc TEXT NOT NULL,
		expires_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS app_metadata (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`

const schemaPostgres = `
	CREATE TABLE IF NOT EXISTS teachers (
		id TEXT PRIMARY KEY,
		email TEXT NOT NULL,
		password_hash TEXT NOT NULL,
		name TEXT NOT NULL,
		created_at BIGINT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS students (
		id TEXT PRIMARY KEY,
		email TEXT NOT NULL,
		password_hash TEXT NOT NULL,
		name TEXT NOT NULL,
		subject_id TEXT NOT NULL,
		created_at BIGINT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS exams (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		time_limit INTEGER NOT NULL DEFAULT 30,
		active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at BIGINT NOT NULL,
		updated_at BIGINT NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS questions (
		id TEXT PRIMARY KEY,
		exam_id TEXT NOT NULL,
		topic TEXT NOT NULL DEFAULT '',
		text TEXT NOT NULL,
		options_json TEXT NOT NULL,
		correct_id TEXT NOT NULL,
		explanation TEXT NOT NULL DEFAULT '',
		order_key BIGINT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS results (
		id TEXT PRIMARY KEY,
		subject_id TEXT NOT NULL,
		exam_id TEXT NOT NULL,
		exam_title TEXT NOT NULL,
		score INTEGER NOT NULL,
		total INTEGER NOT NULL,
		percentage INTEGER NOT NULL,
		created_at BIGINT NOT NULL,
		answers_json TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS all_results (
		id TEXT PRIMARY KEY,
		exam_id TEXT NOT NULL,
		exam_title TEXT NOT NULL,
		score INTEGER NOT NULL,
		total INTEGER NOT NULL,
		percentage INTEGER NOT NULL,
		created_at BIGINT NOT NULL,
		answers_json TEXT NOT NULL DEFAULT '',
		student_name TEXT NOT NULL DEFAULT '',
		subject_id TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS sessions (
		token TEXT PRIMARY KEY,
		doc TEXT NOT NULL,
		expires_at BIGINT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS app_metadata (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`

// newID returns a fresh backend-assigned document id.
func newID() string {
	return uuid.NewString()
}

func nowMillis() int64 {
	return time.Now().UnixMilli()
}
