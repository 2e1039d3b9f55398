package codec

import (
	"reflect"

	"github.com/pkg/errors"
	"google.golang.org/protobuf/proto"
)

var protoMessageType = reflect.TypeOf((*proto.Message)(nil)).Elem()

// ProtobufCodec 字段类型必须是 proto.Message 的指针类型，如 *wrapperspb.StringValue
type ProtobufCodec struct{}

func (c *ProtobufCodec) Name() string {
	return "proto"
}

func (c *ProtobufCodec) Marshal(v any) ([]byte, error) {
	m, ok := v.(proto.Message)
	if !ok {
		return nil, errors.Errorf("type %T is not a proto.Message", v)
	}
	return proto.Marshal(m)
}

// Unmarshal 既接受 proto.Message，也接受指向 proto.Message 字段的指针
func (c *ProtobufCodec) Unmarshal(data []byte, v any) error {
	if m, ok := v.(proto.Message); ok {
		return proto.Unmarshal(data, m)
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Ptr || rv.IsNil() || !rv.Elem().Type().Implements(protoMessageType) || rv.Elem().Kind() != reflect.Ptr {
		return errors.Errorf("type %T is not a pointer to proto.Message", v)
	}
	if rv.Elem().IsNil() {
		rv.Elem().Set(reflect.New(rv.Elem().Type().Elem()))
	}
	return proto.Unmarshal(data, rv.Elem().Interface().(proto.Message))
}

func (c *ProtobufCodec) Check(t reflect.Type) error {
	if t.Kind() != reflect.Ptr || !t.Implements(protoMessageType) {
		return errors.Errorf("type %v is not a pointer to proto.Message", t)
	}
	return nil
}
