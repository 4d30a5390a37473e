package taplib

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/tapflow/tapflow/base/types"
)

// Bookmark field names used in the checkpoint tree.
const (
	BookmarkVersion             = "version"
	BookmarkMaxPKValues         = "max_pk_values"
	BookmarkLastPKFetched       = "last_pk_fetched"
	BookmarkReplicationKey      = "replication_key"
	BookmarkReplicationKeyValue = "replication_key_value"
)

// State is the full checkpoint tree: one bookmark per stream id. It is
// owned by the orchestrator and mutated only through the functions below;
// emitted snapshots are deep copies and never alias the live tree.
type State struct {
	Bookmarks *types.OrderedMap[*types.OrderedMap[any]] `json:"bookmarks"`
}

func NewState() *State {
	return &State{Bookmarks: types.NewOrderedMap[*types.OrderedMap[any]]()}
}

// ParseState loads a checkpoint tree from its JSON representation,
// preserving bookmark field order.
func ParseState(data []byte) (*State, error) {
	state := NewState()
	if len(data) == 0 {
		return state, nil
	}
	if err := json.Unmarshal(data, state); err != nil {
		return nil, err
	}
	if state.Bookmarks == nil {
		state.Bookmarks = types.NewOrderedMap[*types.OrderedMap[any]]()
	}
	return state, nil
}

// GetBookmark returns a checkpoint field for a stream.
func (s *State) GetBookmark(tapStreamID, key string) (any, bool) {
	bookmark, ok := s.Bookmarks.Get(tapStreamID)
	if !ok || bookmark == nil {
		return nil, false
	}
	return bookmark.Get(key)
}

// WriteBookmark sets a checkpoint field for a stream, creating the
// stream's bookmark subtree if needed.
func (s *State) WriteBookmark(tapStreamID, key string, value any) {
	bookmark, ok := s.Bookmarks.Get(tapStreamID)
	if !ok || bookmark == nil {
		bookmark = types.NewOrderedMap[any]()
		s.Bookmarks.Set(tapStreamID, bookmark)
	}
	bookmark.Set(key, value)
}

// ClearBookmark removes a checkpoint field for a stream.
func (s *State) ClearBookmark(tapStreamID, key string) {
	if bookmark, ok := s.Bookmarks.Get(tapStreamID); ok && bookmark != nil {
		bookmark.Delete(key)
	}
}

// Snapshot returns a deep, point-in-time copy of the checkpoint tree,
// decoupled from further in-place mutation.
func (s *State) Snapshot() *State {
	return &State{Bookmarks: s.Bookmarks.Clone()}
}

// GetStreamVersion returns the previously persisted stream version, or
// mints a new one from the current wall-clock time in milliseconds. The
// version tags every record of a run so a downstream consumer can
// distinguish data from different full-refresh epochs.
func GetStreamVersion(state *State, tapStreamID string) int64 {
	if value, ok := state.GetBookmark(tapStreamID, BookmarkVersion); ok {
		if version, ok := asInt64(value); ok {
			return version
		}
	}
	return time.Now().UnixMilli()
}

func asInt64(value any) (int64, bool) {
	switch v := value.(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case float64:
		return int64(v), true
	case json.Number:
		n, err := v.Int64()
		return n, err == nil
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		return n, err == nil
	default:
		return 0, false
	}
}

// UpdateBookmark derives the next checkpoint from a just-emitted record.
// Streams without an established baseline marker are left untouched;
// first-run streams get their markers from an external initialization
// step.
func UpdateBookmark(state *State, record *Record, stream *Stream) {
	tapStreamID := stream.TapStreamID()
	switch stream.ReplicationMethod {
	case ReplicationFullTable, ReplicationLogBased:
		if _, ok := state.GetBookmark(tapStreamID, BookmarkMaxPKValues); !ok {
			return
		}
		lastPKFetched := types.NewOrderedMapCap[any](len(stream.KeyProperties))
		record.Data.ForEach(func(column string, value any) {
			if stream.IsKeyProperty(column) {
				lastPKFetched.Set(column, value)
			}
		})
		state.WriteBookmark(tapStreamID, BookmarkLastPKFetched, lastPKFetched)
	case ReplicationIncremental:
		replicationKey, ok := state.GetBookmark(tapStreamID, BookmarkReplicationKey)
		if !ok || replicationKey == nil {
			return
		}
		key, ok := replicationKey.(string)
		if !ok {
			return
		}
		state.WriteBookmark(tapStreamID, BookmarkReplicationKey, key)
		state.WriteBookmark(tapStreamID, BookmarkReplicationKeyValue, record.Data.GetN(key))
	}
}

// WhitelistBookmarkKeys removes every checkpoint field of the stream that
// is not in allowedKeys. Used when a stream's replication method or key
// configuration changes, so stale fields never leak into future resumes.
func WhitelistBookmarkKeys(state *State, tapStreamID string, allowedKeys []string) {
	bookmark, ok := state.Bookmarks.Get(tapStreamID)
	if !ok || bookmark == nil {
		return
	}
	allowed := make(map[string]struct{}, len(allowedKeys))
	for _, key := range allowedKeys {
		allowed[key] = struct{}{}
	}
	// collect first: deleting while iterating would skip keys
	var stale []string
	for _, key := range bookmark.Keys() {
		if _, ok := allowed[key]; !ok {
			stale = append(stale, key)
		}
	}
	for _, key := range stale {
		bookmark.Delete(key)
	}
}
