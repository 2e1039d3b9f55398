package codec

import (
	"github.com/vmihailenco/msgpack/v5"
)

type MsgPackCodec struct{}

func (c *MsgPackCodec) Name() string {
	return "msgpack"
}

func (c *MsgPackCodec) Marshal(v any) ([]byte, error) {
	return msgpack.Marshal(v)
}

func (c *MsgPackCodec) Unmarshal(data []byte, v any) error {
	return msgpack.Unmarshal(data, v)
}
