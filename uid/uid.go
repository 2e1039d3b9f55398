package uid

import (
	"reflect"
	"sort"

	"github.com/pkg/errors"
)

var ErrUnknownGenerator = errors.New("unknown generator")

// Generator 主键生成器，Kind 为生成值的类型，只会是 reflect.String 或 reflect.Int64
type Generator interface {
	Generate() any
	Kind() reflect.Kind
}

var constructors = map[string]func() Generator{
	"uuid": func() Generator {
		return NewUUIDGeneratorWithOptions(&UUIDOptions{Version: "v4", WithHyphens: true})
	},
	"uuid7": func() Generator {
		return NewUUIDGeneratorWithOptions(&UUIDOptions{Version: "v7", WithHyphens: true})
	},
	"snowflake": func() Generator {
		return NewSnowflakeGenerator(nil)
	},
	"timeseq": func() Generator {
		return NewTimestampSeqGenerator()
	},
}

// New 按名称创建生成器
func New(name string) (Generator, error) {
	constructor, ok := constructors[name]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownGenerator, "generator %q", name)
	}
	return constructor(), nil
}

// Names 已支持的生成器名称
func Names() []string {
	names := make([]string, 0, len(constructors))
	for name := range constructors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
