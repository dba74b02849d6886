package serializer

import "github.com/ValentinKolb/idemkv/rpc/common"

// IRPCSerializer converts messages to and from their wire form.
type IRPCSerializer interface {
	// Serialize encodes msg.
	Serialize(msg common.Message) ([]byte, error)
	// Deserialize decodes b into msg. Fields absent from b are left at their zero value.
	Deserialize(b []byte, msg *common.Message) error
}
