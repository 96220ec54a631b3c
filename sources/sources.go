// Package sources turns query constructors into cached query executors.
//
// A QueryExecutor builds SQL from typed arguments, runs it through an
// Executor and optionally keeps the result as a parquet file. A cache file is
// reused only when it was produced by the identical SQL string and is younger
// than the configured TTL.
package sources

import (
	"bytes"
	"context"
	"crypto/sha1" //nolint:gosec // cache file names, not security
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"text/template"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"golang.org/x/sync/errgroup"

	"duckrel/config"
	"duckrel/internal/ddl"
	"duckrel/relation"
	"duckrel/schema"
)

// Parquet key/value metadata written into every cache file.
const (
	metaSQLQuery   = "sql_query"
	metaStartTime  = "query_start_time"
	metaFinishTime = "query_finish_time"
)

// Executor runs a SQL query and returns its result. The caller releases the
// record.
type Executor func(ctx context.Context, query string) (arrow.Record, error)

// DuckDBExecutor runs queries on db.
func DuckDBExecutor(db *relation.Database) Executor {
	return func(ctx context.Context, query string) (arrow.Record, error) {
		return db.Query(query).ToRecord(ctx)
	}
}

// Source creates query executors sharing one executor, cache directory and
// default TTL.
type Source struct {
	db       *relation.Database
	executor Executor
	cacheDir string
	ttl      time.Duration
	logger   *slog.Logger

	locks sync.Map // cache path -> *sync.Mutex
}

// New returns a Source whose cache files are written and read through db.
// A nil executor runs queries on db itself; a nil cfg uses config.Default.
func New(db *relation.Database, executor Executor, cfg *config.Config) *Source {
	if cfg == nil {
		cfg = config.Default()
	}
	if executor == nil {
		executor = DuckDBExecutor(db)
	}
	cacheDir := cfg.CacheDir
	if cacheDir == "" {
		cacheDir = os.TempDir()
	}
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = config.DefaultCacheTTL
	}
	return &Source{db: db, executor: executor, cacheDir: cacheDir, ttl: ttl, logger: db.Logger()}
}

// CacheDir returns the root directory of the query caches.
func (s *Source) CacheDir() string { return s.cacheDir }

// lock acquires the mutex of a cache path and returns its release.
func (s *Source) lock(path string) func() {
	v, _ := s.locks.LoadOrStore(path, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

type cacheMode int

const (
	cacheDisabled cacheMode = iota
	cacheHashed
	cacheFixed
	cacheTemplate
)

// Cache selects where a query result is cached.
type Cache struct {
	mode    cacheMode
	pattern string
}

// NoCache disables caching; every call executes the query.
func NoCache() Cache { return Cache{} }

// Hashed caches one file per distinct SQL string at
// <cache dir>/<query name>/<sha1 of sql>.parquet.
func Hashed() Cache { return Cache{mode: cacheHashed} }

// Path caches at a fixed parquet path, relative to the cache directory unless
// absolute. Only the result of the most recent SQL string is kept.
func Path(path string) Cache { return Cache{mode: cacheFixed, pattern: path} }

// Template caches at a path produced by executing a text/template with the
// query arguments, e.g. "sales/{{.Year}}.parquet".
func Template(pattern string) Cache { return Cache{mode: cacheTemplate, pattern: pattern} }

// Option configures a QueryExecutor.
type Option func(*options)

type options struct {
	cache Cache
	ttl   time.Duration
	model schema.Schema
}

// WithCache sets the caching mode. The default is NoCache.
func WithCache(c Cache) Option { return func(o *options) { o.cache = c } }

// WithTTL sets the maximum age of a reusable cache file.
func WithTTL(ttl time.Duration) Option { return func(o *options) { o.ttl = ttl } }

// WithModel validates every returned row against s.
func WithModel(s schema.Schema) Option { return func(o *options) { o.model = s } }

// QueryExecutor runs the SQL built by a query constructor for arguments of
// type A.
type QueryExecutor[A any] struct {
	src       *Source
	name      string
	construct func(A) string
	cache     Cache
	tmpl      *template.Template
	ttl       time.Duration
	model     schema.Schema
}

// Query wraps construct in a QueryExecutor. name identifies the query; hashed
// caches are stored in a directory of that name.
func Query[A any](src *Source, name string, construct func(A) string, opts ...Option) (*QueryExecutor[A], error) {
	if err := ddl.ValidateIdentifier(name); err != nil {
		return nil, relation.ErrValue("invalid query name: %v", err)
	}
	o := options{ttl: src.ttl}
	for _, opt := range opts {
		opt(&o)
	}

	q := &QueryExecutor[A]{src: src, name: name, construct: construct, cache: o.cache, ttl: o.ttl, model: o.model}
	switch o.cache.mode {
	case cacheFixed, cacheTemplate:
		if filepath.Ext(o.cache.pattern) != ".parquet" {
			return nil, relation.ErrValue("Cache paths must have the '.parquet' file extension!")
		}
	}
	if o.cache.mode == cacheTemplate {
		tmpl, err := template.New(name).Option("missingkey=error").Parse(o.cache.pattern)
		if err != nil {
			return nil, relation.ErrValue("invalid cache path template: %v", err)
		}
		q.tmpl = tmpl
	}
	return q, nil
}

// Name returns the query name.
func (q *QueryExecutor[A]) Name() string { return q.name }

// SQL returns the query executed for args.
func (q *QueryExecutor[A]) SQL(args A) string { return q.construct(args) }

// CachePath returns the cache file used for args, or "" when caching is
// disabled.
func (q *QueryExecutor[A]) CachePath(args A) (string, error) {
	switch q.cache.mode {
	case cacheHashed:
		sum := sha1.Sum([]byte(q.SQL(args))) //nolint:gosec
		return filepath.Join(q.src.cacheDir, q.name, hex.EncodeToString(sum[:])+".parquet"), nil
	case cacheFixed:
		return q.resolve(q.cache.pattern), nil
	case cacheTemplate:
		var buf bytes.Buffer
		if err := q.tmpl.Execute(&buf, args); err != nil {
			return "", fmt.Errorf("render cache path: %w", err)
		}
		return q.resolve(buf.String()), nil
	default:
		return "", nil
	}
}

func (q *QueryExecutor[A]) resolve(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(q.src.cacheDir, path)
}

// Call returns the result for args, from the cache when a fresh one exists.
// The caller must Release the record.
func (q *QueryExecutor[A]) Call(ctx context.Context, args A) (arrow.Record, error) {
	query := q.SQL(args)
	path, err := q.CachePath(args)
	if err != nil {
		return nil, err
	}

	if path == "" {
		rec, err := q.execute(ctx, query)
		if err != nil {
			return nil, err
		}
		if err := q.validateRecord(ctx, rec); err != nil {
			rec.Release()
			return nil, err
		}
		return rec, nil
	}

	return q.cached(ctx, path, query, false)
}

// cached fills path for query and reads it back while holding the path lock,
// so a concurrent call with different SQL cannot replace the file in between.
// force removes the existing file first.
func (q *QueryExecutor[A]) cached(ctx context.Context, path, query string, force bool) (arrow.Record, error) {
	unlock := q.src.lock(path)
	defer unlock()

	if force {
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("remove cache %s: %w", path, err)
		}
		q.src.logger.Debug("cache removed", "query", q.name, "path", path)
	}
	if err := q.fill(ctx, path, query); err != nil {
		return nil, err
	}

	cached := q.src.db.File(path)
	if err := q.validate(ctx, cached); err != nil {
		return nil, err
	}
	rec, err := cached.ToRecord(ctx)
	if err != nil {
		return nil, fmt.Errorf("read cache %s: %w", path, err)
	}
	return rec, nil
}

// AsArrow executes the query for args without touching the cache. The
// record's schema metadata carries the SQL and the execution times.
func (q *QueryExecutor[A]) AsArrow(ctx context.Context, args A) (arrow.Record, error) {
	return q.execute(ctx, q.SQL(args))
}

// RefreshCache removes the cache file for args and executes the query again.
func (q *QueryExecutor[A]) RefreshCache(ctx context.Context, args A) (arrow.Record, error) {
	path, err := q.CachePath(args)
	if err != nil {
		return nil, err
	}
	if path == "" {
		return q.Call(ctx, args)
	}
	return q.cached(ctx, path, q.SQL(args), true)
}

// Prefetch fills the caches of every argument set, running at most limit
// queries at a time. A limit below one means no bound.
func (q *QueryExecutor[A]) Prefetch(ctx context.Context, argSets []A, limit int) error {
	g, gctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	for _, args := range argSets {
		g.Go(func() error {
			rec, err := q.Call(gctx, args)
			if err != nil {
				return err
			}
			rec.Release()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("prefetch %s: %w", q.name, err)
	}
	return nil
}

func (q *QueryExecutor[A]) execute(ctx context.Context, query string) (arrow.Record, error) {
	start := time.Now()
	rec, err := q.src.executor(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("execute %s: %w", q.name, err)
	}
	finish := time.Now()
	q.src.logger.Debug("query executed", "query", q.name, "rows", rec.NumRows(), "duration", finish.Sub(start))

	keys := []string{metaSQLQuery, metaStartTime, metaFinishTime}
	values := []string{query, formatTime(start), formatTime(finish)}
	md := rec.Schema().Metadata()
	for i, k := range md.Keys() {
		if !isQueryMeta(k) {
			keys = append(keys, k)
			values = append(values, md.Values()[i])
		}
	}
	meta := arrow.NewMetadata(keys, values)
	out := array.NewRecord(arrow.NewSchema(rec.Schema().Fields(), &meta), rec.Columns(), rec.NumRows())
	rec.Release()
	return out, nil
}

// fill executes the query and writes its result to path unless a fresh cache
// for the same query is already there.
func (q *QueryExecutor[A]) fill(ctx context.Context, path, query string) error {
	fresh, err := q.isFresh(ctx, path, query)
	if err != nil {
		return err
	}
	if fresh {
		q.src.logger.Debug("cache hit", "query", q.name, "path", path)
		return nil
	}

	rec, err := q.execute(ctx, query)
	if err != nil {
		return err
	}
	defer rec.Release()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create cache directory: %w", err)
	}

	db := q.src.db
	rel, err := db.ToRelation(ctx, rec)
	if err != nil {
		return fmt.Errorf("register result: %w", err)
	}
	defer db.Unregister(context.WithoutCancel(ctx), rel) //nolint:errcheck

	md := rec.Schema().Metadata().ToMap()
	meta := make(map[string]string, 3)
	for _, k := range []string{metaSQLQuery, metaStartTime, metaFinishTime} {
		if v, ok := md[k]; ok {
			meta[k] = v
		}
	}
	stmt, err := ddl.CopyToParquet(rel.SQL(), path, meta)
	if err != nil {
		return fmt.Errorf("cache statement: %w", err)
	}
	if err := db.Execute(ctx, stmt); err != nil {
		return fmt.Errorf("write cache %s: %w", path, err)
	}
	q.src.logger.Info("cache written", "query", q.name, "path", path, "rows", rec.NumRows())
	return nil
}

// isFresh reports whether path holds the result of query and is younger
// than the TTL.
func (q *QueryExecutor[A]) isFresh(ctx context.Context, path, query string) (bool, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("stat cache %s: %w", path, err)
	}
	meta, err := ReadMetadata(ctx, q.src.db, path)
	if err != nil {
		return false, err
	}
	if meta[metaSQLQuery] != query {
		return false, nil
	}
	started, err := time.Parse(time.RFC3339Nano, meta[metaStartTime])
	if err != nil {
		return false, nil
	}
	return time.Since(started) < q.ttl, nil
}

// ReadMetadata returns the parquet key/value metadata of a file.
func ReadMetadata(ctx context.Context, db *relation.Database, path string) (map[string]string, error) {
	query := fmt.Sprintf("SELECT decode(key), decode(value) FROM parquet_kv_metadata(%s)", ddl.QuoteLiteral(path))
	rows, err := db.DB().QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("read parquet metadata %s: %w", path, err)
	}
	defer rows.Close() //nolint:errcheck

	meta := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("scan parquet metadata: %w", err)
		}
		meta[k] = v
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate parquet metadata: %w", err)
	}
	return meta, nil
}

func (q *QueryExecutor[A]) validateRecord(ctx context.Context, rec arrow.Record) error {
	if q.model == nil {
		return nil
	}
	rel, err := q.src.db.ToRelation(ctx, rec)
	if err != nil {
		return err
	}
	defer q.src.db.Unregister(context.WithoutCancel(ctx), rel) //nolint:errcheck
	return q.validate(ctx, rel)
}

func (q *QueryExecutor[A]) validate(ctx context.Context, rel relation.Relation) error {
	if q.model == nil {
		return nil
	}
	for _, err := range rel.SetModel(q.model).Rows(ctx) {
		if err != nil {
			return fmt.Errorf("validate %s: %w", q.name, err)
		}
	}
	return nil
}

func isQueryMeta(key string) bool {
	return strings.HasPrefix(key, "query_") || key == metaSQLQuery
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
