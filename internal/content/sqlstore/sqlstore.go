// Package sqlstore is a content source backed by a relational database.
// It runs on modernc.org/sqlite (driver "sqlite") or lib/pq (driver
// "postgres"). Queries are written with $n placeholders in argument
// order and rewritten to ? for SQLite.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"time"

	_ "github.com/lib/pq"  // postgres driver
	_ "modernc.org/sqlite" // pure Go SQLite driver

	"github.com/Aman-CERP/wikindex/internal/content"
	"github.com/Aman-CERP/wikindex/internal/entry"
)

// Supported drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Store reads wiki content from SQL tables.
type Store struct {
	db          *sql.DB
	driver      string
	urlTemplate string
}

var _ content.Source = (*Store)(nil)

// Open connects to dsn and pings it. For SQLite an empty dsn means an
// in-memory database.
func Open(ctx context.Context, driver, dsn, urlTemplate string) (*Store, error) {
	switch driver {
	case DriverSQLite:
		if dsn == "" {
			dsn = ":memory:"
		}
	case DriverPostgres:
	default:
		return nil, fmt.Errorf("unsupported driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening %s connection: %w", driver, err)
	}
	if driver == DriverSQLite {
		// Each SQLite connection to :memory: is its own database.
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		db.SetConnMaxLifetime(0)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, content.Unavailable("ping "+driver, err)
	}
	if driver == DriverSQLite {
		if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout = 5000"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}
	return &Store{db: db, driver: driver, urlTemplate: urlTemplate}, nil
}

var numbered = regexp.MustCompile(`\$\d+`)

// q adapts a query to the driver's placeholder syntax.
func (s *Store) q(query string) string {
	if s.driver == DriverSQLite {
		return numbered.ReplaceAllString(query, "?")
	}
	return query
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the connection, mainly for tests.
func (s *Store) DB() *sql.DB {
	return s.db
}

// EnsureSchema creates the content tables if they do not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	blob := "BLOB"
	if s.driver == DriverPostgres {
		blob = "BYTEA"
	}
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS wiki_units (
			wiki        TEXT NOT NULL,
			container   TEXT NOT NULL,
			name        TEXT NOT NULL,
			lang        TEXT NOT NULL DEFAULT '',
			title       TEXT NOT NULL DEFAULT '',
			content     TEXT NOT NULL DEFAULT '',
			author      TEXT NOT NULL DEFAULT '',
			creator     TEXT NOT NULL DEFAULT '',
			created_ms  BIGINT NOT NULL DEFAULT 0,
			modified_ms BIGINT NOT NULL DEFAULT 0,
			PRIMARY KEY (wiki, container, name)
		)`,
		`CREATE TABLE IF NOT EXISTS wiki_translations (
			wiki        TEXT NOT NULL,
			container   TEXT NOT NULL,
			name        TEXT NOT NULL,
			lang        TEXT NOT NULL,
			title       TEXT NOT NULL DEFAULT '',
			content     TEXT NOT NULL DEFAULT '',
			author      TEXT NOT NULL DEFAULT '',
			creator     TEXT NOT NULL DEFAULT '',
			created_ms  BIGINT NOT NULL DEFAULT 0,
			modified_ms BIGINT NOT NULL DEFAULT 0,
			PRIMARY KEY (wiki, container, name, lang)
		)`,
		`CREATE TABLE IF NOT EXISTS wiki_attachments (
			wiki        TEXT NOT NULL,
			container   TEXT NOT NULL,
			name        TEXT NOT NULL,
			filename    TEXT NOT NULL,
			mimetype    TEXT NOT NULL DEFAULT '',
			data        ` + blob + `,
			author      TEXT NOT NULL DEFAULT '',
			created_ms  BIGINT NOT NULL DEFAULT 0,
			modified_ms BIGINT NOT NULL DEFAULT 0,
			PRIMARY KEY (wiki, container, name, filename)
		)`,
		`CREATE TABLE IF NOT EXISTS wiki_objects (
			wiki      TEXT NOT NULL,
			container TEXT NOT NULL,
			name      TEXT NOT NULL,
			class     TEXT NOT NULL,
			number    INTEGER NOT NULL,
			field     TEXT NOT NULL,
			value     TEXT NOT NULL DEFAULT '',
			PRIMARY KEY (wiki, container, name, class, number, field)
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("creating schema: %w", err)
		}
	}
	return nil
}

// Namespaces lists the distinct wikis.
func (s *Store) Namespaces(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, s.q(`SELECT DISTINCT wiki FROM wiki_units ORDER BY wiki`))
	if err != nil {
		return nil, content.Unavailable("list namespaces", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var ns string
		if err := rows.Scan(&ns); err != nil {
			return nil, content.Unavailable("scan namespace", err)
		}
		out = append(out, ns)
	}
	if err := rows.Err(); err != nil {
		return nil, content.Unavailable("list namespaces", err)
	}
	return out, nil
}

// Units lists the units of ns.
func (s *Store) Units(ctx context.Context, ns string) ([]content.UnitRef, error) {
	rows, err := s.db.QueryContext(ctx,
		s.q(`SELECT container, name FROM wiki_units WHERE wiki = $1 ORDER BY container, name`), ns)
	if err != nil {
		return nil, content.Unavailable("list units", err)
	}
	defer rows.Close()
	var out []content.UnitRef
	for rows.Next() {
		ref := content.UnitRef{Wiki: ns}
		if err := rows.Scan(&ref.Container, &ref.Name); err != nil {
			return nil, content.Unavailable("scan unit", err)
		}
		out = append(out, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, content.Unavailable("list units", err)
	}
	return out, nil
}

const unitColumns = `lang, title, content, author, creator, created_ms, modified_ms`

func scanUnit(ref content.UnitRef, sc interface{ Scan(...any) error }) (*content.Unit, error) {
	u := &content.Unit{Ref: ref}
	var created, modified int64
	if err := sc.Scan(&u.Language, &u.Title, &u.Content, &u.Author, &u.Creator, &created, &modified); err != nil {
		return nil, err
	}
	u.Created = fromMillis(created)
	u.Modified = fromMillis(modified)
	return u, nil
}

// Unit fetches the primary version of ref.
func (s *Store) Unit(ctx context.Context, ref content.UnitRef) (*content.Unit, error) {
	row := s.db.QueryRowContext(ctx,
		s.q(`SELECT `+unitColumns+` FROM wiki_units WHERE wiki = $1 AND container = $2 AND name = $3`),
		ref.Wiki, ref.Container, ref.Name)
	u, err := scanUnit(ref, row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, content.NotFound(ref, "unit")
	}
	if err != nil {
		return nil, content.Unavailable("fetch unit", err)
	}
	return u, nil
}

// Translations fetches every translation of ref in language order.
func (s *Store) Translations(ctx context.Context, ref content.UnitRef) ([]*content.Unit, error) {
	rows, err := s.db.QueryContext(ctx,
		s.q(`SELECT `+unitColumns+` FROM wiki_translations
		 WHERE wiki = $1 AND container = $2 AND name = $3 ORDER BY lang`),
		ref.Wiki, ref.Container, ref.Name)
	if err != nil {
		return nil, content.Unavailable("list translations", err)
	}
	defer rows.Close()
	var out []*content.Unit
	for rows.Next() {
		u, err := scanUnit(ref, rows)
		if err != nil {
			return nil, content.Unavailable("scan translation", err)
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, content.Unavailable("list translations", err)
	}
	return out, nil
}

// Attachments fetches every attachment of ref in file name order.
func (s *Store) Attachments(ctx context.Context, ref content.UnitRef) ([]*content.Attachment, error) {
	rows, err := s.db.QueryContext(ctx,
		s.q(`SELECT filename, mimetype, data, author, created_ms, modified_ms FROM wiki_attachments
		 WHERE wiki = $1 AND container = $2 AND name = $3 ORDER BY filename`),
		ref.Wiki, ref.Container, ref.Name)
	if err != nil {
		return nil, content.Unavailable("list attachments", err)
	}
	defer rows.Close()
	var out []*content.Attachment
	for rows.Next() {
		a := &content.Attachment{}
		var created, modified int64
		if err := rows.Scan(&a.Filename, &a.MIMEType, &a.Data, &a.Author, &created, &modified); err != nil {
			return nil, content.Unavailable("scan attachment", err)
		}
		a.Created = fromMillis(created)
		a.Modified = fromMillis(modified)
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, content.Unavailable("list attachments", err)
	}
	return out, nil
}

// Objects fetches the structured objects of ref, one per (class, number).
func (s *Store) Objects(ctx context.Context, ref content.UnitRef) ([]*content.Object, error) {
	rows, err := s.db.QueryContext(ctx,
		s.q(`SELECT class, number, field, value FROM wiki_objects
		 WHERE wiki = $1 AND container = $2 AND name = $3 ORDER BY class, number, field`),
		ref.Wiki, ref.Container, ref.Name)
	if err != nil {
		return nil, content.Unavailable("list objects", err)
	}
	defer rows.Close()
	var (
		out []*content.Object
		cur *content.Object
	)
	for rows.Next() {
		var (
			class, field, value string
			number              int
		)
		if err := rows.Scan(&class, &number, &field, &value); err != nil {
			return nil, content.Unavailable("scan object", err)
		}
		if cur == nil || cur.ClassName != class || cur.Number != number {
			cur = &content.Object{ClassName: class, Number: number, Fields: map[string]string{}}
			out = append(out, cur)
		}
		cur.Fields[field] = value
	}
	if err := rows.Err(); err != nil {
		return nil, content.Unavailable("list objects", err)
	}
	return out, nil
}

// AttachmentURL expands the configured template.
func (s *Store) AttachmentURL(ctx context.Context, key entry.Key, filename string) (string, error) {
	return content.ExpandURL(s.urlTemplate, key, filename), nil
}

func toMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}
