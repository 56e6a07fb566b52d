// internal/output/manager.go
package output

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/valpere/FeedHarvester/internal/config"
	"github.com/valpere/FeedHarvester/internal/harvest"
	"github.com/valpere/FeedHarvester/internal/utils"
)

// Manager opens the configured sink for each batch of records
type Manager struct {
	config   config.OutputConfig
	recorder Recorder
	logger   utils.Logger
	now      func() time.Time
}

// ManagerOption configures a Manager
type ManagerOption func(*Manager)

// WithRecorder attaches an output metrics recorder
func WithRecorder(r Recorder) ManagerOption {
	return func(m *Manager) {
		if r != nil {
			m.recorder = r
		}
	}
}

// WithLogger sets the manager's logger
func WithLogger(l utils.Logger) ManagerOption {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// NewManager creates a new output manager
func NewManager(cfg config.OutputConfig, opts ...ManagerOption) (*Manager, error) {
	if cfg.Format == "" {
		return nil, fmt.Errorf("output format is required")
	}
	m := &Manager{
		config:   cfg,
		recorder: nopRecorder{},
		logger:   utils.NewLogger(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Format returns the configured format
func (m *Manager) Format() Format {
	return Format(m.config.Format)
}

// ResolvePath expands {kind} and {timestamp} placeholders in the
// configured file name
func (m *Manager) ResolvePath(kind harvest.Kind) string {
	return ResolvePath(m.config.File, kind, m.now())
}

// ResolvePath expands {kind} and {timestamp} placeholders in file
func ResolvePath(file string, kind harvest.Kind, t time.Time) string {
	r := strings.NewReplacer(
		"{kind}", string(kind),
		"{timestamp}", t.Format("20060102_150405"),
	)
	return r.Replace(file)
}

// GetWriter returns a writer for the configured format
func (m *Manager) GetWriter(ctx context.Context, kind harvest.Kind) (Writer, error) {
	switch m.Format() {
	case FormatJSON:
		return NewJSONWriter(m.ResolvePath(kind), m.config.Pretty)
	case FormatCSV:
		return NewCSVWriter(m.ResolvePath(kind))
	case FormatYAML:
		return NewYAMLWriter(m.ResolvePath(kind))
	case FormatExcel:
		return NewExcelWriter(m.ResolvePath(kind))
	case FormatSQLite:
		return NewSQLWriter(ctx, SQLOptions{Format: FormatSQLite, DSN: m.ResolvePath(kind), Table: m.config.Table})
	case FormatPostgres, FormatMySQL:
		return NewSQLWriter(ctx, SQLOptions{Format: m.Format(), DSN: m.config.DSN, Table: m.config.Table})
	case FormatMongoDB:
		return NewMongoDBWriter(ctx, MongoDBOptions{
			ConnectionString: m.config.DSN,
			Database:         m.config.Database,
			Collection:       m.config.Collection,
		})
	default:
		return nil, fmt.Errorf("unsupported output format: %s", m.config.Format)
	}
}

// Write writes one batch of records of a single kind and closes the sink
func (m *Manager) Write(ctx context.Context, kind harvest.Kind, records []harvest.Record) (err error) {
	start := time.Now()
	format := string(m.Format())
	defer func() {
		if err != nil {
			m.recorder.RecordOutputError(format)
			return
		}
		m.recorder.RecordOutputSuccess(format, time.Since(start), len(records))
		m.logger.WithFields(map[string]interface{}{
			"format":  format,
			"kind":    kind,
			"records": len(records),
		}).Infof("Wrote %d records", len(records))
	}()

	writer, err := m.GetWriter(ctx, kind)
	if err != nil {
		return fmt.Errorf("failed to get writer: %w", err)
	}

	if err := writer.Write(ctx, records); err != nil {
		writer.Close()
		return fmt.Errorf("failed to write records: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to close writer: %w", err)
	}
	return nil
}

// WriteResult writes a harvest result's records
func (m *Manager) WriteResult(ctx context.Context, res *harvest.Result) error {
	return m.Write(ctx, res.Kind, res.Records)
}

// Ping checks connectivity for database formats. File formats always
// succeed.
func (m *Manager) Ping(ctx context.Context) error {
	switch m.Format() {
	case FormatPostgres, FormatMySQL:
		d := dialects[m.Format()]
		db, err := sql.Open(d.driver, m.config.DSN)
		if err != nil {
			return err
		}
		defer db.Close()
		return db.PingContext(ctx)
	case FormatMongoDB:
		client, err := mongo.Connect(ctx, options.Client().ApplyURI(m.config.DSN))
		if err != nil {
			return err
		}
		defer client.Disconnect(context.Background())
		return client.Ping(ctx, nil)
	}
	return nil
}

// IsDatabase reports whether the format writes to a network database
func (m *Manager) IsDatabase() bool {
	switch m.Format() {
	case FormatPostgres, FormatMySQL, FormatMongoDB:
		return true
	}
	return false
}
