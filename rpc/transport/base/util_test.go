package base

import (
	"bytes"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameRoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		shardID uint64
		reqID   uint64
		data    []byte
		buf     []byte
	}{
		{"empty payload", 1, 2, nil, nil},
		{"fits into buffer", 7, 42, []byte("hello"), make([]byte, 64)},
		{"larger than buffer", 3, 9, bytes.Repeat([]byte("x"), 1024), make([]byte, 32)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, server := net.Pipe()
			defer client.Close()
			defer server.Close()

			go func() {
				_ = writeFrame(client, tt.shardID, tt.reqID, tt.data)
			}()

			shardID, reqID, data, err := readFrame(server, tt.buf)
			require.NoError(t, err)
			assert.Equal(t, tt.shardID, shardID)
			assert.Equal(t, tt.reqID, reqID)
			assert.Equal(t, len(tt.data), len(data))
			assert.True(t, bytes.Equal(tt.data, data))
		})
	}
}

func TestReadFrameTruncated(t *testing.T) {
	client, server := net.Pipe()
	defer server.Close()

	go func() {
		// header announces 10 bytes, only 3 follow
		_, _ = client.Write([]byte{0, 0, 0, 0, 0, 0, 0, 1, 0, 0, 0, 0, 0, 0, 0, 1, 0, 0, 0, 10})
		_, _ = client.Write([]byte("abc"))
		_ = client.Close()
	}()

	_, _, _, err := readFrame(server, nil)
	assert.Error(t, err)
}

func TestReadFrameTooLarge(t *testing.T) {
	header := make([]byte, frameHeaderSize)
	header[16] = 0xff // ~4GB announced
	_, _, _, err := readFrame(bytes.NewReader(header), nil)
	assert.ErrorContains(t, err, "exceeds limit")
}
