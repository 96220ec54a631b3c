package relation

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/duckdb/duckdb-go/v2"
	"github.com/google/uuid"

	"duckrel/config"
	"duckrel/internal/arrowconv"
	"duckrel/internal/ddl"
	"duckrel/internal/plan"
	"duckrel/schema"
)

// registeredPrefix names the tables holding registered Arrow records.
const registeredPrefix = "__relation_"

// File is a parquet or CSV file path accepted by Database.ToRelation.
type File string

// Database owns a DuckDB handle and creates relations bound to it.
type Database struct {
	db     *sql.DB
	owned  bool
	logger *slog.Logger

	mu         sync.Mutex
	enums      map[string]bool
	registered []string
}

// Open opens the database described by cfg, loads the configured extensions
// and, when S3 credentials are configured, creates the S3 secret.
func Open(ctx context.Context, cfg *config.Config) (*Database, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	sqlDB, err := sql.Open("duckdb", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping duckdb: %w", err)
	}

	d := newDatabase(sqlDB, cfg.Logger())
	d.owned = true
	if err := d.setup(ctx, cfg); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	d.logger.Debug("database opened", "path", cfg.Path, "read_only", cfg.ReadOnly)
	return d, nil
}

// OpenPath opens a database file, or an in-memory database when path is
// empty or ":memory:".
func OpenPath(ctx context.Context, path string, readOnly bool) (*Database, error) {
	cfg := config.Default()
	cfg.Path = path
	cfg.ReadOnly = readOnly
	return Open(ctx, cfg)
}

// FromDB wraps an existing DuckDB handle. The caller keeps ownership: Close
// drops registered tables but leaves db open.
func FromDB(db *sql.DB, logger *slog.Logger) *Database {
	if logger == nil {
		logger = slog.Default()
	}
	return newDatabase(db, logger)
}

var (
	defaultOnce sync.Once
	defaultDB   *Database
	defaultErr  error
)

// Default returns a process-wide in-memory database, opened on first use.
func Default() (*Database, error) {
	defaultOnce.Do(func() {
		defaultDB, defaultErr = Open(context.Background(), config.Default())
	})
	return defaultDB, defaultErr
}

func newDatabase(db *sql.DB, logger *slog.Logger) *Database {
	return &Database{db: db, logger: logger, enums: make(map[string]bool)}
}

func (d *Database) setup(ctx context.Context, cfg *config.Config) error {
	extensions := cfg.Extensions
	if cfg.HasS3Config() && !slices.Contains(extensions, "httpfs") {
		extensions = append(append([]string(nil), extensions...), "httpfs")
	}
	for _, ext := range extensions {
		stmts, err := ddl.LoadExtension(ext)
		if err != nil {
			return fmt.Errorf("extension %q: %w", ext, err)
		}
		for _, stmt := range stmts {
			if err := d.Execute(ctx, stmt); err != nil {
				return err
			}
		}
	}

	if cfg.HasS3Config() {
		stmt, err := ddl.CreateS3Secret("duckrel_s3", *cfg.S3KeyID, *cfg.S3Secret,
			deref(cfg.S3Endpoint), deref(cfg.S3Region), deref(cfg.S3URLStyle))
		if err != nil {
			return fmt.Errorf("s3 secret: %w", err)
		}
		if _, err := d.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create s3 secret: %w", err)
		}
		d.logger.Info("s3 secret configured", "endpoint", deref(cfg.S3Endpoint))
	}
	return nil
}

// DB returns the underlying handle.
func (d *Database) DB() *sql.DB { return d.db }

// Logger returns the logger used for executed statements.
func (d *Database) Logger() *slog.Logger { return d.logger }

// Query returns a relation over a SQL query.
func (d *Database) Query(query string) Relation {
	return Relation{db: d, node: plan.Query(query)}
}

// Table returns a relation over every column of a table.
func (d *Database) Table(name string) Relation {
	return Relation{db: d, node: plan.Table(name)}
}

// View returns a relation over every column of a view.
func (d *Database) View(name string) Relation {
	return d.Table(name)
}

// File returns a relation over a parquet or CSV file.
func (d *Database) File(path string) Relation {
	return Relation{db: d, node: plan.File(path)}
}

// ToRelation builds a relation from a SQL string, a File, an existing
// Relation or an Arrow record. Records are copied into an internal table
// that lives until Close; NaN values become NULL.
func (d *Database) ToRelation(ctx context.Context, src any) (Relation, error) {
	switch s := src.(type) {
	case string:
		return d.Query(s), nil
	case File:
		return d.File(string(s)), nil
	case Relation:
		return Relation{db: d, node: s.node, schema: s.schema}, nil
	case *Relation:
		return Relation{db: d, node: s.node, schema: s.schema}, nil
	case arrow.Record:
		return d.register(ctx, s)
	default:
		return Relation{}, ErrType("cannot create a relation from %T", src)
	}
}

func (d *Database) register(ctx context.Context, rec arrow.Record) (Relation, error) {
	if rec.NumCols() == 0 {
		return Relation{}, ErrValue("cannot register a record without columns")
	}
	name := registeredPrefix + strings.ReplaceAll(uuid.NewString(), "-", "")

	defs := make([]string, rec.NumCols())
	for i, f := range rec.Schema().Fields() {
		typ, err := arrowconv.DuckDBType(f.Type)
		if err != nil {
			return Relation{}, fmt.Errorf("column %q: %w", f.Name, err)
		}
		defs[i] = ddl.QuoteIdentifier(f.Name) + " " + typ
	}
	create := fmt.Sprintf("CREATE TABLE %s (%s)", ddl.QuoteIdentifier(name), strings.Join(defs, ", "))
	if err := d.Execute(ctx, create); err != nil {
		return Relation{}, err
	}

	if err := d.appendRecord(ctx, name, rec); err != nil {
		drop, _ := ddl.DropTable(name, true)
		_ = d.Execute(context.WithoutCancel(ctx), drop)
		return Relation{}, err
	}

	d.mu.Lock()
	d.registered = append(d.registered, name)
	d.mu.Unlock()
	d.logger.Debug("record registered", "table", name, "rows", rec.NumRows())
	return d.Table(name), nil
}

// Unregister drops the table behind a relation returned by ToRelation for an
// Arrow record. Other relations are left alone.
func (d *Database) Unregister(ctx context.Context, rel Relation) error {
	scan, ok := rel.node.(*plan.TableScan)
	if !ok {
		return nil
	}
	d.mu.Lock()
	i := slices.Index(d.registered, scan.Name)
	if i >= 0 {
		d.registered = slices.Delete(d.registered, i, i+1)
	}
	d.mu.Unlock()
	if i < 0 {
		return nil
	}

	stmt, err := ddl.DropTable(scan.Name, true)
	if err != nil {
		return err
	}
	return d.Execute(ctx, stmt)
}

func (d *Database) appendRecord(ctx context.Context, table string, rec arrow.Record) error {
	conn, err := d.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("get connection: %w", err)
	}
	defer conn.Close() //nolint:errcheck

	return conn.Raw(func(raw any) error {
		driverConn, ok := raw.(driver.Conn)
		if !ok {
			return fmt.Errorf("unexpected raw conn type %T", raw)
		}
		appender, err := duckdb.NewAppenderFromConn(driverConn, "", table)
		if err != nil {
			return fmt.Errorf("create appender: %w", err)
		}

		row := make([]driver.Value, rec.NumCols())
		for r := 0; r < int(rec.NumRows()); r++ {
			for c := range row {
				v := arrowconv.Value(rec.Column(c), r)
				if arrowconv.IsMissing(v) {
					v = nil
				}
				row[c] = v
			}
			if err := appender.AppendRow(row...); err != nil {
				_ = appender.Close()
				return fmt.Errorf("append row %d: %w", r, err)
			}
		}
		if err := appender.Close(); err != nil {
			return fmt.Errorf("flush appender: %w", err)
		}
		return nil
	})
}

// Execute runs a statement that returns no rows, such as DDL or DML.
func (d *Database) Execute(ctx context.Context, query string, args ...any) error {
	d.logger.Debug("execute", "sql", query)
	if _, err := d.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("execute: %w", err)
	}
	return nil
}

func (d *Database) query(ctx context.Context, query string) (*sql.Rows, error) {
	d.logger.Debug("query", "sql", query)
	rows, err := d.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	return rows, nil
}

// CreateTable creates an empty table with the columns of s. Non-nullable
// fields become NOT NULL columns; enum types are created first.
func (d *Database) CreateTable(ctx context.Context, name string, s schema.Schema) (Relation, error) {
	if err := d.CreateEnumTypes(ctx, s); err != nil {
		return Relation{}, err
	}
	fields := s.Fields()
	cols := make([]ddl.ColumnDef, len(fields))
	for i, f := range fields {
		cols[i] = ddl.ColumnDef{Name: f.Name, Type: f.Type, NotNull: !f.Nullable}
	}
	stmt, err := ddl.CreateTable(name, cols)
	if err != nil {
		return Relation{}, fmt.Errorf("create table %s: %w", name, err)
	}
	if err := d.Execute(ctx, stmt); err != nil {
		return Relation{}, err
	}
	return d.Table(name).SetModel(s), nil
}

// CreateEnumTypes creates the DuckDB enum types of every enum field of s.
// Types that already exist are left alone.
func (d *Database) CreateEnumTypes(ctx context.Context, s schema.Schema) error {
	if s == nil {
		return nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, f := range s.Fields() {
		if len(f.Enum) == 0 || d.enums[f.Type] {
			continue
		}
		var exists bool
		err := d.db.QueryRowContext(ctx,
			"SELECT count(*) > 0 FROM duckdb_types() WHERE type_name = ?", f.Type).Scan(&exists)
		if err != nil {
			return fmt.Errorf("lookup enum type %s: %w", f.Type, err)
		}
		if !exists {
			stmt, err := ddl.CreateEnumType(f.Type, f.Enum)
			if err != nil {
				return fmt.Errorf("enum type for %s: %w", f.Name, err)
			}
			if err := d.Execute(ctx, stmt); err != nil {
				return err
			}
			d.logger.Debug("enum type created", "type", f.Type, "field", f.Name)
		}
		d.enums[f.Type] = true
	}
	return nil
}

// CreateView creates or replaces a view over rel.
func (d *Database) CreateView(ctx context.Context, name string, rel Relation) (Relation, error) {
	stmt, err := ddl.CreateView(name, rel.SQL(), true)
	if err != nil {
		return Relation{}, fmt.Errorf("create view %s: %w", name, err)
	}
	if err := d.Execute(ctx, stmt); err != nil {
		return Relation{}, err
	}
	return d.View(name).SetModel(rel.schema), nil
}

// EmptyRelation returns a relation with the columns and types of s and no rows.
func (d *Database) EmptyRelation(ctx context.Context, s schema.Schema) (Relation, error) {
	if err := d.CreateEnumTypes(ctx, s); err != nil {
		return Relation{}, err
	}
	fields := s.Fields()
	candidates := make([]plan.TypedColumn, len(fields))
	for i, f := range fields {
		candidates[i] = plan.TypedColumn{Name: f.Name, Type: f.Type}
	}
	node := plan.Select(plan.WithMissing(plan.Query("SELECT 1 AS __empty"), nil, candidates), schema.Columns(s)...)
	return Relation{db: d, node: &plan.Limit{Input: node, Count: 0}, schema: s}, nil
}

// Contains reports whether a table or view with the given name exists.
func (d *Database) Contains(ctx context.Context, table string) (bool, error) {
	var n int
	err := d.db.QueryRowContext(ctx,
		"SELECT count(*) FROM information_schema.tables WHERE table_name = ?", table).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("lookup table %s: %w", table, err)
	}
	return n > 0, nil
}

// Close drops registered record tables and, when the handle was opened by
// this package, closes it.
func (d *Database) Close() error {
	d.mu.Lock()
	registered := d.registered
	d.registered = nil
	d.mu.Unlock()

	ctx := context.Background()
	for _, name := range registered {
		stmt, err := ddl.DropTable(name, true)
		if err != nil {
			return err
		}
		if err := d.Execute(ctx, stmt); err != nil {
			d.logger.Warn("drop registered table", "table", name, "error", err)
		}
	}
	if d.owned {
		return d.db.Close()
	}
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
