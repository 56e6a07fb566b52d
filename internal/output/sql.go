// internal/output/sql.go
package output

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql" // MySQL driver
	_ "github.com/lib/pq"              // PostgreSQL driver
	_ "github.com/mattn/go-sqlite3"    // SQLite driver

	"github.com/valpere/FeedHarvester/internal/harvest"
)

// dialect captures the differences between supported SQL databases
type dialect struct {
	name        string
	driver      string
	idColumn    string
	textType    string
	countType   string
	createdType string
	quote       func(string) string
	placeholder func(n int) string
}

var dialects = map[Format]dialect{
	FormatSQLite: {
		name:        "sqlite",
		driver:      "sqlite3",
		idColumn:    "id INTEGER PRIMARY KEY AUTOINCREMENT",
		textType:    "TEXT",
		countType:   "INTEGER",
		createdType: "DATETIME DEFAULT CURRENT_TIMESTAMP",
		quote:       doubleQuote,
		placeholder: func(int) string { return "?" },
	},
	FormatPostgres: {
		name:        "postgres",
		driver:      "postgres",
		idColumn:    "id BIGSERIAL PRIMARY KEY",
		textType:    "TEXT",
		countType:   "BIGINT",
		createdType: "TIMESTAMP DEFAULT CURRENT_TIMESTAMP",
		quote:       doubleQuote,
		placeholder: func(n int) string { return fmt.Sprintf("$%d", n) },
	},
	FormatMySQL: {
		name:        "mysql",
		driver:      "mysql",
		idColumn:    "id BIGINT AUTO_INCREMENT PRIMARY KEY",
		textType:    "TEXT",
		countType:   "BIGINT",
		createdType: "TIMESTAMP DEFAULT CURRENT_TIMESTAMP",
		quote:       func(s string) string { return "`" + s + "`" },
		placeholder: func(int) string { return "?" },
	},
}

func doubleQuote(s string) string { return `"` + s + `"` }

// SQLWriter inserts records into a table, creating it on first write.
// Columns ending in _count are stored as integers, everything else as text.
type SQLWriter struct {
	db      *sql.DB
	dialect dialect
	table   string
	columns []string
	insert  string
}

// SQLOptions configures a SQL writer
type SQLOptions struct {
	Format Format
	// DSN is the connection string; for SQLite it is the database path
	DSN   string
	Table string
}

// NewSQLWriter connects to the database
func NewSQLWriter(ctx context.Context, options SQLOptions) (*SQLWriter, error) {
	d, ok := dialects[options.Format]
	if !ok {
		return nil, fmt.Errorf("unsupported SQL format: %s", options.Format)
	}
	if options.DSN == "" {
		return nil, fmt.Errorf("%s connection string is required", d.name)
	}
	if options.Table != "" {
		if err := ValidateIdentifier(options.Table); err != nil {
			return nil, fmt.Errorf("invalid table name: %w", err)
		}
	}

	dsn := options.DSN
	if options.Format == FormatSQLite {
		if dir := filepath.Dir(dsn); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
		if !strings.Contains(dsn, "?") {
			dsn += "?_busy_timeout=5000&_journal_mode=WAL"
		}
	}

	db, err := sql.Open(d.driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", d.name, err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping %s database: %w", d.name, err)
	}

	if options.Format == FormatSQLite {
		// SQLite works best with a single writer
		db.SetMaxOpenConns(1)
	}

	return &SQLWriter{db: db, dialect: d, table: options.Table}, nil
}

// Write inserts records in one transaction
func (w *SQLWriter) Write(ctx context.Context, records []harvest.Record) error {
	if w.db == nil {
		return fmt.Errorf("writer is closed")
	}
	table := NewTable(records)
	if len(table.Rows) == 0 {
		return nil
	}

	if w.columns == nil {
		if err := w.prepare(ctx, table); err != nil {
			return err
		}
	} else if len(table.Columns) != len(w.columns) {
		return fmt.Errorf("record kind %s does not match table %s", table.Kind, w.table)
	}

	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, w.insert)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, row := range table.Rows {
		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			return fmt.Errorf("failed to insert row %d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

// prepare creates the table and builds the insert statement
func (w *SQLWriter) prepare(ctx context.Context, table Table) error {
	if w.table == "" {
		w.table = defaultTableName(table.Kind)
	}
	for _, c := range table.Columns {
		if err := ValidateIdentifier(c); err != nil {
			return fmt.Errorf("invalid column name: %w", err)
		}
	}

	if _, err := w.db.ExecContext(ctx, w.createTableSQL(table.Columns)); err != nil {
		return fmt.Errorf("failed to create table %s: %w", w.table, err)
	}

	w.columns = table.Columns
	w.insert = w.insertSQL(table.Columns)
	return nil
}

func (w *SQLWriter) createTableSQL(columns []string) string {
	defs := make([]string, 0, len(columns)+2)
	defs = append(defs, w.dialect.idColumn)
	for _, c := range columns {
		defs = append(defs, w.dialect.quote(c)+" "+w.columnType(c))
	}
	defs = append(defs, w.dialect.quote("harvested_at")+" "+w.dialect.createdType)

	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)",
		w.dialect.quote(w.table), strings.Join(defs, ", "))
}

func (w *SQLWriter) insertSQL(columns []string) string {
	quoted := make([]string, len(columns))
	params := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = w.dialect.quote(c)
		params[i] = w.dialect.placeholder(i + 1)
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		w.dialect.quote(w.table), strings.Join(quoted, ", "), strings.Join(params, ", "))
}

func (w *SQLWriter) columnType(column string) string {
	if strings.HasSuffix(column, "_count") {
		return w.dialect.countType
	}
	return w.dialect.textType
}

// Table returns the target table name, known after the first write
func (w *SQLWriter) Table() string {
	return w.table
}

// Close closes the database connection
func (w *SQLWriter) Close() error {
	if w.db == nil {
		return nil
	}
	err := w.db.Close()
	w.db = nil
	return err
}
