package app

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/go-sql-driver/mysql"
	"github.com/tapflow/tapflow/base/appbase"
	"github.com/tapflow/tapflow/base/logging"
	"github.com/tapflow/tapflow/tapapp/metrics"
	"github.com/tapflow/tapflow/taplib"
)

var appSettings = &appbase.AppSettings{
	Name:       "tapflow",
	ConfigName: "tapflow",
	ConfigType: "env",
	EnvPrefix:  "TAPFLOW",
}

// Runner executes one sync run: every selected stream of the catalog,
// sequentially, over a single source connection pool.
type Runner struct {
	appbase.Service
	config  *Config
	catalog *Catalog
	state   *taplib.State
}

func NewRunner() (*Runner, error) {
	config := &Config{}
	if err := appbase.InitAppConfig(config, appSettings); err != nil {
		return nil, err
	}
	if config.LogDir != "" {
		if _, err := logging.InitRollingOutput(logging.RollingConfig{
			Dir:       config.LogDir,
			FileName:  "tapflow.log",
			MaxSizeMb: 100,
			Compress:  true,
		}); err != nil {
			return nil, err
		}
	}
	if config.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	catalog, err := LoadCatalog(config.CatalogPath)
	if err != nil {
		return nil, err
	}
	state, err := LoadState(config.StatePath)
	if err != nil {
		return nil, err
	}
	return &Runner{
		Service: appbase.NewServiceBase("tapflow"),
		config:  config,
		catalog: catalog,
		state:   state,
	}, nil
}

// Run syncs all selected streams and persists the final checkpoint state.
// A stream failure aborts the run; retry is left to the operator or an
// external scheduler, resuming from the last persisted checkpoint.
func (r *Runner) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := sql.Open("mysql", r.config.DatabaseURL)
	if err != nil {
		return fmt.Errorf("error opening source connection: %v", err)
	}
	defer db.Close()
	if err = db.PingContext(ctx); err != nil {
		return taplib.SourceError.Wrap(err, "source is not reachable")
	}

	out := taplib.NewJSONLinesWriter(os.Stdout)
	counted := &countingWriter{out: out}
	syncer := taplib.NewSyncer(r.config.SyncConfig(), counted)

	streams := r.catalog.SelectedStreams()
	r.Infof("Syncing %d streams", len(streams))
	for _, stream := range streams {
		counted.stream = stream
		if err = r.syncStream(ctx, syncer, db, stream); err != nil {
			metrics.SyncErrors(stream.Database, stream.Table).Inc()
			r.Errorf("Stream %s sync failed: %v", stream, err)
			break
		}
	}
	if flushErr := out.Flush(); err == nil {
		err = flushErr
	}
	if persistErr := r.persistState(); err == nil {
		err = persistErr
	}
	r.Infof("Run finished: %d rows synced", syncer.RowsSynced())
	return err
}

func (r *Runner) syncStream(ctx context.Context, syncer *taplib.Syncer, db *sql.DB, stream *taplib.Stream) error {
	columns := stream.SelectedColumns()
	selectSQL, err := taplib.GenerateSelectSQL(stream, columns)
	if err != nil {
		return err
	}
	tapStreamID := stream.TapStreamID()
	version := taplib.GetStreamVersion(r.state, tapStreamID)
	r.state.WriteBookmark(tapStreamID, taplib.BookmarkVersion, version)

	selectSQL, params := r.appendResumePredicate(selectSQL, stream)

	cursor := taplib.NewSQLCursor(db)
	defer cursor.Close()
	return syncer.SyncQuery(ctx, cursor, stream, r.state, selectSQL, columns, version, params...)
}

// appendResumePredicate narrows an INCREMENTAL stream's query to rows at
// or past the bookmarked replication key value.
func (r *Runner) appendResumePredicate(selectSQL string, stream *taplib.Stream) (string, []any) {
	if stream.ReplicationMethod != taplib.ReplicationIncremental {
		return selectSQL, nil
	}
	tapStreamID := stream.TapStreamID()
	key, ok := r.state.GetBookmark(tapStreamID, taplib.BookmarkReplicationKey)
	if !ok {
		return selectSQL, nil
	}
	keyName, ok := key.(string)
	if !ok {
		return selectSQL, nil
	}
	escapedKey, err := taplib.EscapeIdentifier(keyName)
	if err != nil {
		// the projection builder will have rejected this identifier
		// already; keep the plain statement
		return selectSQL, nil
	}
	value, ok := r.state.GetBookmark(tapStreamID, taplib.BookmarkReplicationKeyValue)
	if !ok || value == nil {
		return selectSQL + fmt.Sprintf(" ORDER BY %s ASC", escapedKey), nil
	}
	if number, isNumber := value.(json.Number); isNumber {
		value = number.String()
	}
	return selectSQL + fmt.Sprintf(" WHERE %s >= ? ORDER BY %s ASC", escapedKey, escapedKey), []any{value}
}

func (r *Runner) persistState() error {
	if r.config.StateOutputPath == "" {
		return nil
	}
	data, err := json.Marshal(r.state)
	if err != nil {
		return fmt.Errorf("error marshalling state: %v", err)
	}
	if err = os.WriteFile(r.config.StateOutputPath, data, 0644); err != nil {
		return fmt.Errorf("error persisting state to %s: %v", r.config.StateOutputPath, err)
	}
	r.Infof("State persisted to %s", r.config.StateOutputPath)
	return nil
}

// countingWriter reports per-database/table row and batch counters while
// forwarding every message unchanged.
type countingWriter struct {
	out    taplib.MessageWriter
	stream *taplib.Stream
}

func (w *countingWriter) WriteMessage(message taplib.Message) error {
	if w.stream != nil {
		switch m := message.(type) {
		case *taplib.RecordMessage:
			metrics.SyncRows(w.stream.Database, w.stream.Table).Inc()
		case *taplib.BatchMessage:
			metrics.SyncRows(w.stream.Database, w.stream.Table).Add(float64(m.BatchSize))
			metrics.SyncBatches(w.stream.Database, w.stream.Table).Inc()
		}
	}
	return w.out.WriteMessage(message)
}
