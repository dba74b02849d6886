package base

import (
	"encoding/binary"
	"fmt"
	"io"
	"net"
)

// Frame layout, all integers big endian:
//
//	shard id    uint64
//	request id  uint64
//	length      uint32
//	payload     length bytes
const frameHeaderSize = 8 + 8 + 4

// maxFrameSize bounds the payload a peer may announce
const maxFrameSize = 64 << 20

func writeFrame(conn net.Conn, shardID uint64, requestID uint64, data []byte) error {
	var header [frameHeaderSize]byte
	binary.BigEndian.PutUint64(header[0:], shardID)
	binary.BigEndian.PutUint64(header[8:], requestID)
	binary.BigEndian.PutUint32(header[16:], uint32(len(data)))

	// header and payload go out in one writev
	frame := net.Buffers{header[:], data}
	_, err := frame.WriteTo(conn)
	return err
}

// readFrame reads the next frame from r. The payload aliases buf when it fits, so callers
// must copy it before reusing buf.
func readFrame(r io.Reader, buf []byte) (shardID uint64, requestID uint64, payload []byte, err error) {
	var header [frameHeaderSize]byte
	if _, err = io.ReadFull(r, header[:]); err != nil {
		return 0, 0, nil, err
	}
	shardID = binary.BigEndian.Uint64(header[0:])
	requestID = binary.BigEndian.Uint64(header[8:])
	n := binary.BigEndian.Uint32(header[16:])

	if n > maxFrameSize {
		return 0, 0, nil, fmt.Errorf("frame of %d bytes exceeds limit of %d", n, maxFrameSize)
	}
	if n == 0 {
		return shardID, requestID, []byte{}, nil
	}
	if uint32(len(buf)) < n {
		buf = make([]byte, n)
	}
	if _, err = io.ReadFull(r, buf[:n]); err != nil {
		return 0, 0, nil, err
	}
	return shardID, requestID, buf[:n], nil
}
