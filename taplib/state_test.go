package taplib

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/tapflow/tapflow/base/types"
)

func incrementalStream() *Stream {
	return &Stream{
		Database:          "shop",
		Table:             "orders",
		Columns:           []Column{{Name: "id", Type: TypeSet{"integer"}}, {Name: "updated_at", Type: TypeSet{"string"}, Format: FormatDateTime}},
		KeyProperties:     []string{"id"},
		ReplicationMethod: ReplicationIncremental,
	}
}

func fullTableStream() *Stream {
	s := incrementalStream()
	s.ReplicationMethod = ReplicationFullTable
	return s
}

func record(stream *Stream, values map[string]any) *Record {
	data := types.NewOrderedMap[any]()
	for _, col := range stream.Columns {
		data.Set(col.Name, values[col.Name])
	}
	return &Record{Stream: stream.Table, Data: data, Version: 1, TimeExtracted: extractedAt}
}

func TestGetStreamVersion(t *testing.T) {
	state := NewState()
	before := time.Now().UnixMilli()
	minted := GetStreamVersion(state, "shop-orders")
	require.GreaterOrEqual(t, minted, before)
	require.LessOrEqual(t, minted, time.Now().UnixMilli())

	state.WriteBookmark("shop-orders", BookmarkVersion, int64(1234))
	require.Equal(t, int64(1234), GetStreamVersion(state, "shop-orders"))

	// versions loaded from a JSON state file arrive as json.Number
	state.WriteBookmark("shop-orders", BookmarkVersion, json.Number("5678"))
	require.Equal(t, int64(5678), GetStreamVersion(state, "shop-orders"))
}

func TestUpdateBookmarkIncremental(t *testing.T) {
	stream := incrementalStream()
	state := NewState()

	// no replication_key baseline: checkpoint stays untouched
	UpdateBookmark(state, record(stream, map[string]any{"id": 1, "updated_at": "2024-01-01"}), stream)
	_, ok := state.GetBookmark(stream.TapStreamID(), BookmarkReplicationKeyValue)
	require.False(t, ok)

	state.WriteBookmark(stream.TapStreamID(), BookmarkReplicationKey, "updated_at")
	for i, updatedAt := range []string{"2024-01-01", "2024-01-02", "2024-01-03"} {
		UpdateBookmark(state, record(stream, map[string]any{"id": i, "updated_at": updatedAt}), stream)
	}
	value, ok := state.GetBookmark(stream.TapStreamID(), BookmarkReplicationKeyValue)
	require.True(t, ok)
	require.Equal(t, "2024-01-03", value)
}

func TestUpdateBookmarkFullTable(t *testing.T) {
	stream := fullTableStream()
	state := NewState()

	// no max_pk_values marker: first run, checkpoint stays untouched
	UpdateBookmark(state, record(stream, map[string]any{"id": 1}), stream)
	_, ok := state.GetBookmark(stream.TapStreamID(), BookmarkLastPKFetched)
	require.False(t, ok)

	// resumed run: marker exists, last_pk_fetched follows the records
	state.WriteBookmark(stream.TapStreamID(), BookmarkMaxPKValues, map[string]any{"id": 100})
	UpdateBookmark(state, record(stream, map[string]any{"id": 7, "updated_at": "x"}), stream)
	value, ok := state.GetBookmark(stream.TapStreamID(), BookmarkLastPKFetched)
	require.True(t, ok)
	lastPK := value.(*types.OrderedMap[any])
	require.Equal(t, 1, lastPK.Len())
	require.Equal(t, 7, lastPK.GetN("id"))
}

func TestWhitelistBookmarkKeys(t *testing.T) {
	state := NewState()
	state.WriteBookmark("shop-orders", BookmarkVersion, int64(1))
	state.WriteBookmark("shop-orders", BookmarkReplicationKey, "updated_at")
	state.WriteBookmark("shop-orders", BookmarkReplicationKeyValue, "2024-01-01")
	state.WriteBookmark("shop-other", BookmarkVersion, int64(2))

	WhitelistBookmarkKeys(state, "shop-orders", []string{BookmarkVersion})

	bookmark, _ := state.Bookmarks.Get("shop-orders")
	require.Equal(t, []string{BookmarkVersion}, bookmark.Keys())
	// other streams are untouched
	other, _ := state.Bookmarks.Get("shop-other")
	require.Equal(t, 1, other.Len())
}

func TestSnapshotIsDeepCopy(t *testing.T) {
	stream := fullTableStream()
	state := NewState()
	state.WriteBookmark(stream.TapStreamID(), BookmarkMaxPKValues, map[string]any{"id": 100})
	UpdateBookmark(state, record(stream, map[string]any{"id": 1}), stream)

	snapshot := state.Snapshot()
	snapJSON, err := json.Marshal(snapshot)
	require.NoError(t, err)

	// later checkpoint mutations must not leak into the snapshot
	UpdateBookmark(state, record(stream, map[string]any{"id": 2}), stream)
	state.WriteBookmark(stream.TapStreamID(), BookmarkVersion, int64(99))

	unchangedJSON, err := json.Marshal(snapshot)
	require.NoError(t, err)
	require.JSONEq(t, string(snapJSON), string(unchangedJSON))
}

func TestSnapshotIdempotence(t *testing.T) {
	state := NewState()
	state.WriteBookmark("shop-orders", BookmarkVersion, int64(1))
	state.WriteBookmark("shop-orders", BookmarkReplicationKey, "updated_at")

	first, err := json.Marshal(state.Snapshot())
	require.NoError(t, err)
	second, err := json.Marshal(state.Snapshot())
	require.NoError(t, err)
	require.Equal(t, string(first), string(second))
}

func TestParseStateRoundTrip(t *testing.T) {
	raw := `{"bookmarks":{"shop-orders":{"version":1715000000000,"replication_key":"updated_at","replication_key_value":"2024-01-03"}}}`
	state, err := ParseState([]byte(raw))
	require.NoError(t, err)
	require.Equal(t, int64(1715000000000), GetStreamVersion(state, "shop-orders"))

	encoded, err := json.Marshal(state)
	require.NoError(t, err)
	require.JSONEq(t, raw, string(encoded))

	// bookmark field order survives the round trip
	bookmark, _ := state.Bookmarks.Get("shop-orders")
	require.Equal(t, []string{"version", "replication_key", "replication_key_value"}, bookmark.Keys())
}
