// internal/output/types.go

// Package output writes harvested records to files and databases.
package output

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/valpere/FeedHarvester/internal/harvest"
)

// Format represents a supported output format
type Format string

const (
	FormatJSON     Format = "json"
	FormatCSV      Format = "csv"
	FormatYAML     Format = "yaml"
	FormatExcel    Format = "excel"
	FormatSQLite   Format = "sqlite"
	FormatPostgres Format = "postgres"
	FormatMySQL    Format = "mysql"
	FormatMongoDB  Format = "mongodb"
)

// Extension returns the file extension used for file formats
func (f Format) Extension() string {
	switch f {
	case FormatExcel:
		return "xlsx"
	case FormatSQLite:
		return "db"
	default:
		return string(f)
	}
}

// Writer is a sink for harvested records. Write may be called several
// times; Close flushes and releases the sink.
type Writer interface {
	Write(ctx context.Context, records []harvest.Record) error
	Close() error
}

// Table is a flat, ordered view of records of one kind
type Table struct {
	Kind    harvest.Kind
	Columns []string
	Rows    [][]interface{}
}

// NewTable flattens records, dereferencing count pointers so every
// cell is a plain value or nil
func NewTable(records []harvest.Record) Table {
	columns, rows := harvest.Tabulate(records)
	t := Table{Columns: columns, Rows: rows}
	if len(records) > 0 {
		t.Kind = records[0].Kind()
	}
	for _, row := range t.Rows {
		for i, v := range row {
			row[i] = plainValue(v)
		}
	}
	return t
}

func plainValue(v interface{}) interface{} {
	switch x := v.(type) {
	case *int64:
		if x == nil {
			return nil
		}
		return *x
	case *string:
		if x == nil {
			return nil
		}
		return *x
	}
	return v
}

// cellString renders a plain value for text sinks; nil becomes ""
func cellString(v interface{}) string {
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%v", v)
}

// Recorder receives output metrics
type Recorder interface {
	RecordOutputSuccess(format string, duration time.Duration, records int)
	RecordOutputError(format string)
}

type nopRecorder struct{}

func (nopRecorder) RecordOutputSuccess(string, time.Duration, int) {}
func (nopRecorder) RecordOutputError(string)                       {}

// SQL identifier validation
var sqlIdentifierRegex = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// MaxIdentifierLength is the shortest identifier limit among supported
// databases (MySQL allows 64, PostgreSQL 63)
const MaxIdentifierLength = 63

var reservedWords = map[string]bool{
	"ALL": true, "AND": true, "AS": true, "BY": true, "CREATE": true, "DELETE": true,
	"DROP": true, "FROM": true, "GROUP": true, "INDEX": true, "INSERT": true, "INTO": true,
	"JOIN": true, "KEY": true, "NOT": true, "NULL": true, "OR": true, "ORDER": true,
	"PRIMARY": true, "SELECT": true, "SET": true, "TABLE": true, "UNION": true,
	"UPDATE": true, "USER": true, "VALUES": true, "WHERE": true, "WITH": true,
}

// ValidateIdentifier checks that name can be used unquoted as a table or
// column name in every supported SQL dialect
func ValidateIdentifier(name string) error {
	if name == "" {
		return fmt.Errorf("identifier cannot be empty")
	}
	if len(name) > MaxIdentifierLength {
		return fmt.Errorf("identifier %q exceeds %d characters", name, MaxIdentifierLength)
	}
	if !sqlIdentifierRegex.MatchString(name) {
		return fmt.Errorf("identifier %q must start with a letter or underscore and contain only letters, digits and underscores", name)
	}
	if reservedWords[strings.ToUpper(name)] {
		return fmt.Errorf("identifier %q is a reserved word", name)
	}
	return nil
}

// defaultTableName names the table or collection for a record kind
func defaultTableName(kind harvest.Kind) string {
	if kind == "" {
		return "records"
	}
	return string(kind) + "s"
}
