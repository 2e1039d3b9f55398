package codec

import (
	"reflect"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
)

// BSONCodec 只支持文档类型，即结构体和 map
type BSONCodec struct{}

func (c *BSONCodec) Name() string {
	return "bson"
}

func (c *BSONCodec) Marshal(v any) ([]byte, error) {
	return bson.Marshal(v)
}

func (c *BSONCodec) Unmarshal(data []byte, v any) error {
	return bson.Unmarshal(data, v)
}

func (c *BSONCodec) Check(t reflect.Type) error {
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct && t.Kind() != reflect.Map {
		return errors.Errorf("bson codec requires a struct or map, got %v", t)
	}
	return nil
}
