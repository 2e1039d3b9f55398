package codec

import (
	"reflect"
	"sort"

	"github.com/pkg/errors"
)

var ErrUnknownCodec = errors.New("unknown codec")

// Codec 结构化字段与 BLOB 之间的编解码，Unmarshal 的 v 必须是指针
type Codec interface {
	Name() string
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

// TypeChecker 由只支持部分 Go 类型的编解码器实现，注册实体时校验字段类型
type TypeChecker interface {
	Check(t reflect.Type) error
}

// Check 校验编解码器是否支持类型 t
func Check(c Codec, t reflect.Type) error {
	if checker, ok := c.(TypeChecker); ok {
		return checker.Check(t)
	}
	return nil
}

var codecs = map[string]Codec{}

func register(c Codec) {
	codecs[c.Name()] = c
}

func init() {
	register(&JSONCodec{})
	register(&MsgPackCodec{})
	register(&BSONCodec{})
	register(&ProtobufCodec{})
}

// Get 按名称获取编解码器
func Get(name string) (Codec, error) {
	c, ok := codecs[name]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownCodec, "codec %q", name)
	}
	return c, nil
}

func Names() []string {
	names := make([]string, 0, len(codecs))
	for name := range codecs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
