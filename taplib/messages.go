package taplib

import (
	"bufio"
	"io"
	"sync"

	jsoniter "github.com/json-iterator/go"
	"github.com/tapflow/tapflow/base/types"
)

// MessageType discriminates the line-oriented output messages.
type MessageType string

const (
	RecordMessageType MessageType = "RECORD"
	BatchMessageType  MessageType = "BATCH"
	StateMessageType  MessageType = "STATE"
)

// Message is one structured output message of the engine.
type Message interface {
	MessageType() MessageType
}

// RecordMessage carries one extracted record.
type RecordMessage struct {
	Type          MessageType            `json:"type"`
	Stream        string                 `json:"stream"`
	Record        *types.OrderedMap[any] `json:"record"`
	Version       int64                  `json:"version"`
	TimeExtracted string                 `json:"time_extracted"`
}

func (m *RecordMessage) MessageType() MessageType { return RecordMessageType }

// NewRecordMessage wraps a Record for emission.
func NewRecordMessage(record *Record) *RecordMessage {
	return &RecordMessage{
		Type:          RecordMessageType,
		Stream:        record.Stream,
		Record:        record.Data,
		Version:       record.Version,
		TimeExtracted: record.TimeExtracted.UTC().Format(isoLayout),
	}
}

// BatchMessage describes one closed batch file of buffered records.
type BatchMessage struct {
	Type      MessageType `json:"type"`
	Stream    string      `json:"stream"`
	Filepath  string      `json:"filepath"`
	BatchSize int         `json:"batch_size"`
}

func (m *BatchMessage) MessageType() MessageType { return BatchMessageType }

// StateMessage carries a point-in-time snapshot of the full checkpoint
// tree.
type StateMessage struct {
	Type  MessageType `json:"type"`
	Value *State      `json:"value"`
}

func (m *StateMessage) MessageType() MessageType { return StateMessageType }

// MessageWriter is the output boundary of the engine. Implementations are
// expected to write messages in call order.
type MessageWriter interface {
	WriteMessage(message Message) error
}

// JSONLinesWriter writes one JSON-encoded message per line. Writes from
// multiple streams running in one process are serialized by a mutex.
type JSONLinesWriter struct {
	mu        sync.Mutex
	bufWriter *bufio.Writer
	encoder   *jsoniter.Encoder
}

func NewJSONLinesWriter(writer io.Writer) *JSONLinesWriter {
	bufWriter := bufio.NewWriterSize(writer, 100*1024)
	encoder := jsoniter.NewEncoder(bufWriter)
	encoder.SetEscapeHTML(false)
	return &JSONLinesWriter{bufWriter: bufWriter, encoder: encoder}
}

func (w *JSONLinesWriter) WriteMessage(message Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.encoder.Encode(message)
}

func (w *JSONLinesWriter) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.bufWriter.Flush()
}
