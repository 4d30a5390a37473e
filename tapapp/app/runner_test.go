package app

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tapflow/tapflow/base/appbase"
	"github.com/tapflow/tapflow/taplib"
)

func testRunner(state *taplib.State) *Runner {
	return &Runner{
		Service: appbase.NewServiceBase("tapflow"),
		config:  &Config{},
		state:   state,
	}
}

func incrementalTestStream() *taplib.Stream {
	return &taplib.Stream{
		Database:          "shop",
		Table:             "orders",
		Columns:           []taplib.Column{{Name: "id", Type: taplib.TypeSet{"integer"}}, {Name: "updated_at", Type: taplib.TypeSet{"string"}, Format: taplib.FormatDateTime}},
		ReplicationMethod: taplib.ReplicationIncremental,
	}
}

func TestAppendResumePredicate(t *testing.T) {
	stream := incrementalTestStream()
	base := "SELECT `id`,`updated_at` FROM `shop`.`orders`"

	// no replication key bookmark: statement stays as-is
	runner := testRunner(taplib.NewState())
	selectSQL, params := runner.appendResumePredicate(base, stream)
	require.Equal(t, base, selectSQL)
	require.Nil(t, params)

	// key without value: just ordering
	state := taplib.NewState()
	state.WriteBookmark("shop-orders", taplib.BookmarkReplicationKey, "updated_at")
	runner = testRunner(state)
	selectSQL, params = runner.appendResumePredicate(base, stream)
	require.Equal(t, base+" ORDER BY `updated_at` ASC", selectSQL)
	require.Nil(t, params)

	// key with value: resume predicate plus ordering
	state.WriteBookmark("shop-orders", taplib.BookmarkReplicationKeyValue, "2024-01-03")
	selectSQL, params = runner.appendResumePredicate(base, stream)
	require.Equal(t, base+" WHERE `updated_at` >= ? ORDER BY `updated_at` ASC", selectSQL)
	require.Equal(t, []any{"2024-01-03"}, params)

	// values loaded from a JSON state file arrive as json.Number
	state.WriteBookmark("shop-orders", taplib.BookmarkReplicationKeyValue, json.Number("42"))
	_, params = runner.appendResumePredicate(base, stream)
	require.Equal(t, []any{"42"}, params)

	// FULL_TABLE streams are untouched
	stream.ReplicationMethod = taplib.ReplicationFullTable
	selectSQL, params = runner.appendResumePredicate(base, stream)
	require.Equal(t, base, selectSQL)
	require.Nil(t, params)
}
