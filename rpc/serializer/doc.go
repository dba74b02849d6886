// Package serializer turns rpc messages into bytes and back. Both the client and the
// server side of a connection must use the same implementation.
//
// Implementations:
//
//   - NewBinarySerializer: a compact hand written format. A flag byte records which
//     optional fields follow, so small requests (a Has or a Release) stay a few bytes
//     long. This is the default for the tcp transport.
//
//   - NewJSONSerializer: encoding/json over the Message struct. Slower and larger, but
//     readable with curl and tcpdump, which helps when debugging the http transport.
//
// Binary layout (all integers big endian):
//
//	byte 0      message type
//	byte 1      field flags (key, ttl, value, ok, code, err)
//	key         uint32 length + bytes      if flagged
//	ttl         int64 nanoseconds          if flagged
//	value       uint32 length + bytes      if flagged
//	code        1 byte                     if flagged
//	err         uint32 length + bytes      if flagged
//
// Ok carries no payload, the flag alone encodes true. A present but empty value is kept
// distinct from a missing one, cached responses with an empty body depend on it.
//
// Serializers hold no state and may be shared between goroutines.
//
//	s := serializer.NewBinarySerializer()
//	data, err := s.Serialize(common.NewGetRequest("idem:acme:k1"))
//	var msg common.Message
//	err = s.Deserialize(data, &msg)
package serializer
