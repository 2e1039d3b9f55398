package cfg

import (
	"fmt"
	"os"
	"reflect"

	"github.com/go-playground/validator/v10"
)

// Load 从文件加载配置到 object
// 根据文件后缀选择解码器，随后依次填充默认值和校验
func Load(filename string, object any) error {
	if filename == "" {
		return fmt.Errorf("filename cannot be empty")
	}

	decoder, err := DecoderForFile(filename)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", filename, err)
	}

	return Decode(decoder, data, object)
}

// Decode 使用指定解码器把原始数据填充到 object
func Decode(decoder Decoder, data []byte, object any) error {
	tree, err := decoder.Decode(data)
	if err != nil {
		return err
	}
	if err := ConvertTo(tree, object); err != nil {
		return fmt.Errorf("failed to convert config: %w", err)
	}
	if err := SetDefaults(object); err != nil {
		return fmt.Errorf("failed to set defaults: %w", err)
	}
	if err := Validate(object); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Validate 使用 validator 校验结构体，非结构体和空指针直接通过
func Validate(object any) error {
	rv := reflect.ValueOf(object)
	for rv.IsValid() && rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}
	if !rv.IsValid() || rv.Kind() != reflect.Struct {
		return nil
	}

	return validator.New().Struct(rv.Interface())
}
