package dstore

import (
	"bytes"
	"testing"

	"github.com/ValentinKolb/idemkv/lib/db"
	"github.com/ValentinKolb/idemkv/lib/db/engines/maple"
	"github.com/ValentinKolb/idemkv/lib/store"
	"github.com/ValentinKolb/idemkv/lib/store/dstore/internal"
	sm "github.com/lni/dragonboat/v4/statemachine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStateMachine(t *testing.T) *KVStateMachine {
	factory := CreateStateMachineFactory(func() db.KVDB { return maple.NewMapleDB(nil) })
	fsm := factory(1, 1).(*KVStateMachine)
	t.Cleanup(func() { _ = fsm.Close() })
	return fsm
}

func update(t *testing.T, fsm *KVStateMachine, cmds ...internal.Command) []sm.Entry {
	entries := make([]sm.Entry, len(cmds))
	for i, c := range cmds {
		entries[i] = sm.Entry{Index: uint64(i + 1), Cmd: c.Serialize()}
	}
	out, err := fsm.Update(entries)
	require.NoError(t, err)
	return out
}

func TestSetIfUnsetReportsWinner(t *testing.T) {
	fsm := newTestStateMachine(t)

	out := update(t, fsm,
		internal.Command{Type: internal.CommandTSetIfUnset, Key: "lock", Value: []byte("a"), Now: 100, TTL: 50},
		internal.Command{Type: internal.CommandTSetIfUnset, Key: "lock", Value: []byte("b"), Now: 120, TTL: 50},
		internal.Command{Type: internal.CommandTSetIfUnset, Key: "lock", Value: []byte("c"), Now: 150, TTL: 50},
	)

	assert.Equal(t, internal.ResultStored, out[0].Result.Data, "first writer wins")
	assert.Equal(t, internal.ResultRejected, out[1].Result.Data, "live lock rejects")
	assert.Equal(t, internal.ResultStored, out[2].Result.Data, "expired lock is taken over")

	res, err := fsm.Lookup(internal.Query{Type: internal.QueryTGet, Key: "lock", Now: 160})
	require.NoError(t, err)
	assert.Equal(t, []byte("c"), res.(internal.QueryResult).Value)
}

func TestTTLUsesProposerClock(t *testing.T) {
	fsm := newTestStateMachine(t)

	update(t, fsm, internal.Command{Type: internal.CommandTSetE, Key: "rec", Value: []byte("v"), Now: 1000, TTL: 10})

	res, err := fsm.Lookup(internal.Query{Type: internal.QueryTGet, Key: "rec", Now: 1009})
	require.NoError(t, err)
	assert.True(t, res.(internal.QueryResult).Ok)

	has, err := fsm.Lookup(internal.Query{Type: internal.QueryTHas, Key: "rec", Now: 1010})
	require.NoError(t, err)
	assert.False(t, has.(bool))
}

func TestInvalidCommands(t *testing.T) {
	fsm := newTestStateMachine(t)

	out, err := fsm.Update([]sm.Entry{
		{Index: 1, Cmd: nil},
		{Index: 2, Cmd: []byte{1, 2}},
		{Index: 3, Cmd: (&internal.Command{Type: 99, Key: "k"}).Serialize()},
	})
	require.NoError(t, err)

	assert.Equal(t, uint64(store.RetCInvalidOperation), out[0].Result.Value)
	assert.Equal(t, uint64(store.RetCInternalError), out[1].Result.Value)
	assert.Equal(t, uint64(store.RetCInvalidOperation), out[2].Result.Value)

	_, err = fsm.Lookup("not a query")
	assert.Error(t, err)
}

func TestSnapshotRoundTrip(t *testing.T) {
	source := newTestStateMachine(t)
	update(t, source,
		internal.Command{Type: internal.CommandTSet, Key: "a", Value: []byte("1"), Now: 1},
		internal.Command{Type: internal.CommandTSetE, Key: "b", Value: []byte("2"), Now: 1, TTL: 100},
	)

	var buf bytes.Buffer
	require.NoError(t, source.SaveSnapshot(nil, &buf, nil, nil))

	target := newTestStateMachine(t)
	require.NoError(t, target.RecoverFromSnapshot(&buf, nil, nil))

	res, err := target.Lookup(internal.Query{Type: internal.QueryTGet, Key: "b", Now: 50})
	require.NoError(t, err)
	assert.Equal(t, []byte("2"), res.(internal.QueryResult).Value)

	res, err = target.Lookup(internal.Query{Type: internal.QueryTGet, Key: "b", Now: 101})
	require.NoError(t, err)
	assert.False(t, res.(internal.QueryResult).Ok)
}
