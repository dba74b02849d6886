package serializer

import (
	"encoding/json"
	"errors"

	"github.com/ValentinKolb/idemkv/rpc/common"
)

var errEmptyPayload = errors.New("empty payload")

// NewJSONSerializer returns a serializer that encodes messages as json objects
func NewJSONSerializer() IRPCSerializer {
	return jsonSerializer{}
}

type jsonSerializer struct{}

func (jsonSerializer) Serialize(msg common.Message) ([]byte, error) {
	return json.Marshal(msg)
}

func (jsonSerializer) Deserialize(b []byte, msg *common.Message) error {
	if len(b) == 0 {
		return errEmptyPayload
	}
	*msg = common.Message{}
	return json.Unmarshal(b, msg)
}
