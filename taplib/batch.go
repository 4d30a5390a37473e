package taplib

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"

	jsoniter "github.com/json-iterator/go"
)

// BatchFile is one open file of a stream's rotating batch sequence: an
// append-only handle plus a row counter. The writer has no rotation
// policy of its own; the orchestrator decides when to rotate.
type BatchFile struct {
	stream string
	path   string
	file   *os.File
	buf    *bufio.Writer
	enc    *jsoniter.Encoder
	rows   int
	closed bool
}

// BatchFilePath returns <basePath>/<table>/<table>_<index zero-padded to
// 6 digits>.jsonl.
func BatchFilePath(basePath, table string, index int) string {
	fileName := fmt.Sprintf("%s_%06d.jsonl", table, index)
	return filepath.Join(basePath, table, fileName)
}

// OpenNextBatchFile creates the parent directory if absent and opens the
// batch file with the given index for writing.
func OpenNextBatchFile(stream *Stream, index int, basePath string) (*BatchFile, error) {
	path := BatchFilePath(basePath, stream.Table, index)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, FilesystemError.Wrap(err, "stream %s: can't create batch directory", stream)
	}
	file, err := os.Create(path)
	if err != nil {
		return nil, FilesystemError.Wrap(err, "stream %s: can't create batch file %s", stream, path)
	}
	buf := bufio.NewWriterSize(file, 100*1024)
	enc := jsoniter.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	return &BatchFile{
		stream: stream.StreamName(),
		path:   path,
		file:   file,
		buf:    buf,
		enc:    enc,
	}, nil
}

// WriteRecord appends one JSON-encoded record message line.
func (bf *BatchFile) WriteRecord(message *RecordMessage) error {
	if err := bf.enc.Encode(message); err != nil {
		return FilesystemError.Wrap(err, "can't write record to batch file %s", bf.path)
	}
	bf.rows++
	return nil
}

func (bf *BatchFile) Path() string {
	return bf.path
}

func (bf *BatchFile) Rows() int {
	return bf.rows
}

// Close flushes and closes the file and returns its batch descriptor.
// Safe to call exactly once per opened file, including on early stream
// termination with a partially filled file.
func (bf *BatchFile) Close() (*BatchMessage, error) {
	if bf.closed {
		return nil, FilesystemError.New("batch file %s is already closed", bf.path)
	}
	bf.closed = true
	if err := bf.buf.Flush(); err != nil {
		_ = bf.file.Close()
		return nil, FilesystemError.Wrap(err, "can't flush batch file %s", bf.path)
	}
	if err := bf.file.Close(); err != nil {
		return nil, FilesystemError.Wrap(err, "can't close batch file %s", bf.path)
	}
	return &BatchMessage{
		Type:      BatchMessageType,
		Stream:    bf.stream,
		Filepath:  bf.path,
		BatchSize: bf.rows,
	}, nil
}

// Discard closes and removes an empty batch file that never received a
// row, so threshold-aligned extractions leave no trailing empty file.
func (bf *BatchFile) Discard() error {
	if bf.closed {
		return nil
	}
	bf.closed = true
	_ = bf.buf.Flush()
	if err := bf.file.Close(); err != nil {
		return FilesystemError.Wrap(err, "can't close batch file %s", bf.path)
	}
	if err := os.Remove(bf.path); err != nil {
		return FilesystemError.Wrap(err, "can't remove empty batch file %s", bf.path)
	}
	return nil
}
