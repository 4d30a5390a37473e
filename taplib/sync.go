package taplib

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/joomcode/errorx"
	"github.com/tapflow/tapflow/base/appbase"
	"go.uber.org/atomic"
)

// stateEmitEvery is how often immediate mode emits a checkpoint snapshot,
// in records.
const stateEmitEvery = 1000

// SyncConfig holds the batching switches of the orchestrator.
type SyncConfig struct {
	// BatchMessages selects batched mode: records are buffered into
	// rotating files and announced via batch descriptors instead of being
	// emitted one by one.
	BatchMessages bool `mapstructure:"BATCH_MESSAGES" default:"false"`
	// BatchCursorSize is how many rows are fetched from the cursor per
	// chunk in batched mode.
	BatchCursorSize int `mapstructure:"BATCH_CURSOR_SIZE" default:"500000"`
	// BatchSize is the per-file row threshold. Defaults to
	// 2*BatchCursorSize.
	BatchSize int `mapstructure:"BATCH_SIZE"`
	// BatchBasePath is the base output directory for batch files.
	// Defaults to a per-run unique temporary path.
	BatchBasePath string `mapstructure:"BATCH_BASE_PATH"`
}

// Normalize fills derived defaults.
func (c *SyncConfig) Normalize() {
	if c.BatchCursorSize <= 0 {
		c.BatchCursorSize = 500000
	}
	if c.BatchSize <= 0 {
		c.BatchSize = c.BatchCursorSize * 2
	}
	if c.BatchBasePath == "" {
		c.BatchBasePath = filepath.Join(os.TempDir(), "tapflow_batch", uuid.NewString())
	}
}

// Syncer drives one stream's extraction at a time: cursor consumption,
// row transcoding, checkpoint mutation and, in batched mode, file
// rotation. It performs no retries: any cursor, transcoding or file
// failure aborts the stream's sync.
type Syncer struct {
	appbase.Service
	config *SyncConfig
	out    MessageWriter

	rowsSynced atomic.Int64
}

func NewSyncer(config *SyncConfig, out MessageWriter) *Syncer {
	config.Normalize()
	return &Syncer{
		Service: appbase.NewServiceBase("syncer"),
		config:  config,
		out:     out,
	}
}

// RowsSynced returns the number of rows synced by this Syncer across all
// calls.
func (s *Syncer) RowsSynced() int64 {
	return s.rowsSynced.Load()
}

// SyncQuery executes the extraction query on the cursor and pumps every
// row through transcoding, emission and checkpoint update, in that order.
// The checkpoint update for a record always happens after the record
// itself was emitted or written to its batch file.
func (s *Syncer) SyncQuery(ctx context.Context, cursor Cursor, stream *Stream, state *State, selectSQL string, columns []string, version int64, params ...any) error {
	s.Infof("Running %s", cursor.Describe(selectSQL, params...))
	if err := cursor.Execute(ctx, selectSQL, params...); err != nil {
		return s.streamError(err, stream)
	}
	timeExtracted := time.Now().UTC()

	if s.config.BatchMessages {
		return s.syncBatched(ctx, cursor, stream, state, columns, version, timeExtracted)
	}
	return s.syncImmediate(ctx, cursor, stream, state, columns, version, timeExtracted)
}

// syncImmediate fetches rows one by one and emits each record the moment
// it is transcoded, with a checkpoint snapshot every stateEmitEvery
// records.
func (s *Syncer) syncImmediate(ctx context.Context, cursor Cursor, stream *Stream, state *State, columns []string, version int64, timeExtracted time.Time) error {
	rowsSaved := 0
	for {
		if ctxErr := ctx.Err(); ctxErr != nil {
			// shutdown: leave a last valid checkpoint behind before exiting
			s.Warnf("Stream %s: sync interrupted after %d rows: %v", stream, rowsSaved, ctxErr)
			return multierror.Append(ctxErr, s.emitState(state)).ErrorOrNil()
		}
		row, err := cursor.FetchOne()
		if err != nil {
			return s.streamError(err, stream)
		}
		if row == nil {
			break
		}
		record, err := RowToRecord(stream, version, row, columns, timeExtracted)
		if err != nil {
			return err
		}
		if err = s.out.WriteMessage(NewRecordMessage(record)); err != nil {
			return s.streamError(err, stream)
		}
		rowsSaved++
		s.rowsSynced.Inc()
		UpdateBookmark(state, record, stream)

		if rowsSaved%stateEmitEvery == 0 {
			if err = s.emitState(state); err != nil {
				return err
			}
		}
	}
	s.Infof("Stream %s: synced %d rows", stream, rowsSaved)
	// final snapshot, unconditionally
	return s.emitState(state)
}

// syncBatched fetches rows in chunks and buffers records into rotating
// files. Rotation is judged solely by the per-file row threshold, never
// by chunk fullness.
func (s *Syncer) syncBatched(ctx context.Context, cursor Cursor, stream *Stream, state *State, columns []string, version int64, timeExtracted time.Time) error {
	fileIndex := 0
	file, err := OpenNextBatchFile(stream, fileIndex, s.config.BatchBasePath)
	if err != nil {
		return err
	}
	fileIndex++
	rowsSaved := 0
	tic := time.Now()

	// abort closes the current file without announcing it: its contents
	// were never covered by a batch descriptor and must not be consumed
	abort := func(reason error) error {
		result := multierror.Append(nil, reason)
		if file != nil {
			if _, closeErr := file.Close(); closeErr != nil {
				result = multierror.Append(result, closeErr)
			}
		}
		return result.ErrorOrNil()
	}

	for {
		if ctxErr := ctx.Err(); ctxErr != nil {
			// shutdown: close the open file so no handle dangles, then
			// leave a last valid checkpoint behind
			s.Warnf("Stream %s: sync interrupted after %d rows: %v", stream, rowsSaved, ctxErr)
			return multierror.Append(ctxErr, s.finalizeBatch(file, state, tic)).ErrorOrNil()
		}
		rows, fetchErr := cursor.FetchMany(s.config.BatchCursorSize)
		if fetchErr != nil {
			return abort(s.streamError(fetchErr, stream))
		}
		if len(rows) == 0 {
			break
		}
		for _, row := range rows {
			record, recErr := RowToRecord(stream, version, row, columns, timeExtracted)
			if recErr != nil {
				return abort(recErr)
			}
			if writeErr := file.WriteRecord(NewRecordMessage(record)); writeErr != nil {
				return abort(writeErr)
			}
			rowsSaved++
			s.rowsSynced.Inc()
			UpdateBookmark(state, record, stream)

			if file.Rows() == s.config.BatchSize {
				if err = s.rotate(file, state, tic); err != nil {
					return err
				}
				tic = time.Now()
				if file, err = OpenNextBatchFile(stream, fileIndex, s.config.BatchBasePath); err != nil {
					return err
				}
				fileIndex++
			}
		}
	}
	err = s.finalizeBatch(file, state, tic)
	if err == nil {
		s.Infof("Stream %s: synced %d rows into %s", stream, rowsSaved, s.config.BatchBasePath)
	}
	return err
}

// rotate closes a full batch file and emits its descriptor followed by a
// checkpoint snapshot.
func (s *Syncer) rotate(file *BatchFile, state *State, tic time.Time) error {
	rows := file.Rows()
	path := file.Path()
	descriptor, err := file.Close()
	if err != nil {
		return err
	}
	s.Infof("%d records written to file '%s' in %s", rows, path, time.Since(tic))
	if err = s.out.WriteMessage(descriptor); err != nil {
		return err
	}
	return s.emitState(state)
}

// finalizeBatch closes the last batch file: a partially filled file gets
// a descriptor with the actual row count, an untouched file is removed.
func (s *Syncer) finalizeBatch(file *BatchFile, state *State, tic time.Time) error {
	if file == nil {
		return s.emitState(state)
	}
	var result *multierror.Error
	if file.Rows() == 0 {
		result = multierror.Append(result, file.Discard())
	} else {
		rows := file.Rows()
		path := file.Path()
		descriptor, err := file.Close()
		if err != nil {
			result = multierror.Append(result, err)
		} else {
			s.Infof("%d records written to file '%s' in %s", rows, path, time.Since(tic))
			result = multierror.Append(result, s.out.WriteMessage(descriptor))
		}
	}
	result = multierror.Append(result, s.emitState(state))
	return result.ErrorOrNil()
}

// emitState emits a deep, point-in-time snapshot of the checkpoint tree,
// decoupled from further in-place mutation.
func (s *Syncer) emitState(state *State) error {
	return s.out.WriteMessage(&StateMessage{Type: StateMessageType, Value: state.Snapshot()})
}

// streamError attaches stream context so external retry or alerting can
// tell which table failed.
func (s *Syncer) streamError(err error, stream *Stream) error {
	if errorx.IsOfType(err, SourceError) || errorx.IsOfType(err, FilesystemError) {
		return errorx.Decorate(err, "stream %s (database: %s, table: %s)", stream.TapStreamID(), stream.Database, stream.Table)
	}
	return SourceError.Wrap(err, "stream %s (database: %s, table: %s)", stream.TapStreamID(), stream.Database, stream.Table)
}
