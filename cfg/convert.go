package cfg

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// ConvertTo 将解码后的通用数据结构转换为目标对象，字段名取 cfg tag，缺省为字段名
func ConvertTo(data any, object any) error {
	rv := reflect.ValueOf(object)
	if rv.Kind() != reflect.Ptr || rv.IsNil() {
		return fmt.Errorf("object must be a non-nil pointer")
	}
	return convertValue(data, rv.Elem())
}

func convertValue(src any, dst reflect.Value) error {
	srcValue := reflect.ValueOf(src)
	if !srcValue.IsValid() {
		return nil
	}

	if dst.Kind() == reflect.Ptr {
		if dst.IsNil() {
			dst.Set(reflect.New(dst.Type().Elem()))
		}
		return convertValue(src, dst.Elem())
	}

	if n, ok := src.(json.Number); ok {
		return convertString(n.String(), dst)
	}

	// 时间类型
	switch dst.Type() {
	case reflect.TypeOf(time.Duration(0)):
		return convertToDuration(srcValue, dst)
	case reflect.TypeOf(time.Time{}):
		if t, ok := src.(time.Time); ok {
			dst.Set(reflect.ValueOf(t))
			return nil
		}
		if s, ok := src.(string); ok {
			t, err := time.Parse(time.RFC3339, s)
			if err != nil {
				return fmt.Errorf("failed to parse time %q: %v", s, err)
			}
			dst.Set(reflect.ValueOf(t))
			return nil
		}
		return fmt.Errorf("cannot convert %v to time.Time", srcValue.Type())
	}

	switch dst.Kind() {
	case reflect.Struct:
		return convertToStruct(srcValue, dst)
	case reflect.Map:
		return convertToMap(srcValue, dst)
	case reflect.Slice:
		if srcValue.Kind() == reflect.String && dst.Type().Elem().Kind() != reflect.Uint8 {
			// ini 中的列表写成逗号分隔字符串
			parts := strings.Split(srcValue.String(), ",")
			items := make([]any, len(parts))
			for i, p := range parts {
				items[i] = strings.TrimSpace(p)
			}
			srcValue = reflect.ValueOf(items)
		}
		return convertToSlice(srcValue, dst)
	case reflect.Interface:
		if dst.Type().NumMethod() == 0 {
			dst.Set(srcValue)
			return nil
		}
	}

	if srcValue.Kind() == reflect.String && dst.Kind() != reflect.String {
		return convertString(srcValue.String(), dst)
	}

	if srcValue.Type().AssignableTo(dst.Type()) {
		dst.Set(srcValue)
		return nil
	}
	if srcValue.Type().ConvertibleTo(dst.Type()) && srcValue.Kind() != reflect.String {
		dst.Set(srcValue.Convert(dst.Type()))
		return nil
	}

	return fmt.Errorf("cannot convert %v to %v", srcValue.Type(), dst.Type())
}

// convertString 把字符串形式的标量解析到目标类型，ini 和 json.Number 都走这里
func convertString(s string, dst reflect.Value) error {
	switch dst.Kind() {
	case reflect.String:
		dst.SetString(s)
	case reflect.Bool:
		v, err := strconv.ParseBool(s)
		if err != nil {
			return fmt.Errorf("invalid bool value %q: %v", s, err)
		}
		dst.SetBool(v)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if dst.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(s)
			if err != nil {
				return fmt.Errorf("invalid duration value %q: %v", s, err)
			}
			dst.SetInt(int64(d))
			return nil
		}
		v, err := strconv.ParseInt(s, 0, dst.Type().Bits())
		if err != nil {
			return fmt.Errorf("invalid int value %q: %v", s, err)
		}
		dst.SetInt(v)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		v, err := strconv.ParseUint(s, 0, dst.Type().Bits())
		if err != nil {
			return fmt.Errorf("invalid uint value %q: %v", s, err)
		}
		dst.SetUint(v)
	case reflect.Float32, reflect.Float64:
		v, err := strconv.ParseFloat(s, dst.Type().Bits())
		if err != nil {
			return fmt.Errorf("invalid float value %q: %v", s, err)
		}
		dst.SetFloat(v)
	case reflect.Interface:
		dst.Set(reflect.ValueOf(s))
	default:
		return fmt.Errorf("cannot convert string to %v", dst.Type())
	}
	return nil
}

func convertToDuration(src, dst reflect.Value) error {
	switch src.Kind() {
	case reflect.String:
		d, err := time.ParseDuration(src.String())
		if err != nil {
			return fmt.Errorf("failed to parse duration %q: %v", src.String(), err)
		}
		dst.SetInt(int64(d))
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		// 整数视为纳秒
		dst.SetInt(src.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		dst.SetInt(int64(src.Uint()))
	case reflect.Float32, reflect.Float64:
		// 浮点数视为秒
		dst.SetInt(int64(src.Float() * float64(time.Second)))
	default:
		return fmt.Errorf("cannot convert %v to time.Duration", src.Type())
	}
	return nil
}

func convertToMap(src, dst reflect.Value) error {
	if src.Kind() != reflect.Map {
		return fmt.Errorf("source is not a map")
	}
	if dst.IsNil() {
		dst.Set(reflect.MakeMap(dst.Type()))
	}

	for _, key := range src.MapKeys() {
		item := reflect.New(dst.Type().Elem()).Elem()
		if err := convertValue(src.MapIndex(key).Interface(), item); err != nil {
			return err
		}

		k := key
		if key.Kind() == reflect.Interface {
			k = key.Elem()
		}
		if !k.Type().AssignableTo(dst.Type().Key()) {
			if !k.Type().ConvertibleTo(dst.Type().Key()) {
				return fmt.Errorf("cannot convert key %v to %v", k.Type(), dst.Type().Key())
			}
			k = k.Convert(dst.Type().Key())
		}
		dst.SetMapIndex(k, item)
	}
	return nil
}

func convertToSlice(src, dst reflect.Value) error {
	if src.Kind() != reflect.Slice && src.Kind() != reflect.Array {
		return fmt.Errorf("source is not a slice or array")
	}

	n := src.Len()
	dst.Set(reflect.MakeSlice(dst.Type(), n, n))
	for i := 0; i < n; i++ {
		if err := convertValue(src.Index(i).Interface(), dst.Index(i)); err != nil {
			return err
		}
	}
	return nil
}

func convertToStruct(src, dst reflect.Value) error {
	if src.Kind() != reflect.Map {
		return fmt.Errorf("source is not a map")
	}

	// 键名忽略大小写，ini 文件常见全小写的键
	entries := make(map[string]reflect.Value, src.Len())
	for _, key := range src.MapKeys() {
		entries[strings.ToLower(fmt.Sprint(key.Interface()))] = src.MapIndex(key)
	}

	dstType := dst.Type()
	for i := 0; i < dstType.NumField(); i++ {
		field := dstType.Field(i)
		fieldValue := dst.Field(i)
		if !fieldValue.CanSet() {
			continue
		}

		name := field.Name
		if tag := field.Tag.Get("cfg"); tag != "" {
			if tag == "-" {
				continue
			}
			name = strings.Split(tag, ",")[0]
		}

		value, ok := entries[strings.ToLower(name)]
		if !ok {
			continue
		}
		if err := convertValue(value.Interface(), fieldValue); err != nil {
			return fmt.Errorf("field %s: %w", name, err)
		}
	}
	return nil
}
