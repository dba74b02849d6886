package serializer

import (
	"testing"
	"time"

	"github.com/ValentinKolb/idemkv/lib/store"
	"github.com/ValentinKolb/idemkv/rpc/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSerializers = map[string]func() IRPCSerializer{
	"json":   NewJSONSerializer,
	"binary": NewBinarySerializer,
}

func sampleMessages() map[string]common.Message {
	return map[string]common.Message{
		"type_only":      {MsgType: common.MsgTSuccess},
		"set":            *common.NewSetRequest("test-key", []byte("test-value")),
		"set_if_unset":   *common.NewSetEIfUnsetRequest("idem:t1:tok", []byte(`{"status":201}`), 24*time.Hour),
		"get_response":   *common.NewGetResponse([]byte("test-value"), true, nil),
		"error_response": *common.NewErrorResponse(store.RetCUnavailable, "store unreachable"),
		"all_fields": {
			MsgType: common.MsgTLCKAcquire,
			Key:     "lock:acme:tok",
			TTL:     int64(30 * time.Second),
			Value:   []byte("owner"),
			Ok:      true,
			Code:    uint8(store.RetCInvalidOperation),
			Err:     "lock held",
		},
	}
}

func TestRoundTrip(t *testing.T) {
	for name, factory := range testSerializers {
		s := factory()
		for msgName, msg := range sampleMessages() {
			t.Run(name+"/"+msgName, func(t *testing.T) {
				data, err := s.Serialize(msg)
				require.NoError(t, err)

				var got common.Message
				require.NoError(t, s.Deserialize(data, &got))
				assert.Equal(t, msg, got)
			})
		}
	}
}

func TestEveryMessageType(t *testing.T) {
	for name, factory := range testSerializers {
		s := factory()
		t.Run(name, func(t *testing.T) {
			for mt := common.MsgTSuccess; mt <= common.MsgTLCKRelease; mt++ {
				data, err := s.Serialize(common.Message{MsgType: mt})
				require.NoError(t, err, mt.String())

				var got common.Message
				require.NoError(t, s.Deserialize(data, &got), mt.String())
				assert.Equal(t, mt, got.MsgType)
			}
		})
	}
}

func TestDeserializeResetsTarget(t *testing.T) {
	for name, factory := range testSerializers {
		s := factory()
		t.Run(name, func(t *testing.T) {
			data, err := s.Serialize(*common.NewHasRequest("k"))
			require.NoError(t, err)

			got := common.Message{Err: "stale", Ok: true, Value: []byte("old")}
			require.NoError(t, s.Deserialize(data, &got))
			assert.Equal(t, *common.NewHasRequest("k"), got)
		})
	}
}

func TestBinaryEdgeCases(t *testing.T) {
	s := NewBinarySerializer()

	tests := []struct {
		name string
		msg  common.Message
	}{
		{"zero", common.Message{}},
		{"empty_value_kept", common.Message{MsgType: common.MsgTKVSet, Key: "k", Value: []byte{}}},
		{"nil_value", common.Message{MsgType: common.MsgTKVGet, Ok: true}},
		{"negative_ttl", common.Message{MsgType: common.MsgTLCKAcquire, Key: "lock", TTL: -1}},
		{"code_without_err", common.Message{MsgType: common.MsgTError, Code: uint8(store.RetCInternalError)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := s.Serialize(tt.msg)
			require.NoError(t, err)

			var got common.Message
			require.NoError(t, s.Deserialize(data, &got))
			assert.Equal(t, tt.msg, got)
			assert.Equal(t, tt.msg.Value == nil, got.Value == nil)
		})
	}
}

func TestBinaryRejectsCorruptData(t *testing.T) {
	s := NewBinarySerializer()

	tests := []struct {
		name    string
		data    []byte
		wantErr bool
	}{
		{"empty", []byte{}, true},
		{"no_flags", []byte{1}, true},
		{"header_only", []byte{1, 0}, false},
		{"short_key", []byte{1, hasKey, 0, 0, 0, 5, 'a', 'b', 'c'}, true},
		{"short_value", []byte{1, hasValue, 0, 0, 0, 10}, true},
		{"short_ttl", []byte{1, hasTTL, 0, 0, 0, 1}, true},
		{"missing_code", []byte{1, hasCode}, true},
		{"short_err", []byte{1, hasErr, 0, 0}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var msg common.Message
			err := s.Deserialize(tt.data, &msg)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestJSONRejectsEmptyPayload(t *testing.T) {
	var msg common.Message
	assert.ErrorIs(t, NewJSONSerializer().Deserialize(nil, &msg), errEmptyPayload)
}
