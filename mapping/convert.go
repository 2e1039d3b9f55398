package mapping

import (
	"fmt"
	"math"
	"reflect"
	"strconv"
	"time"

	"github.com/pkg/errors"
)

// Value 读取标量或编码字段，转换为 SQL 参数
// 空指针为 NULL，bool 存为 0/1，time.Time 存为 RFC3339Nano 文本
func (f *Field) Value(v reflect.Value) (any, error) {
	fv := f.Reflect(v)

	switch f.kind {
	case KindEncoded:
		switch fv.Kind() {
		case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Interface:
			if fv.IsNil() {
				return nil, nil
			}
		}
		data, err := f.codec.Marshal(fv.Interface())
		if err != nil {
			return nil, errors.Wrapf(err, "encode %s with %s", f.name, f.codec.Name())
		}
		return data, nil
	case KindScalar:
		return scalarValue(fv)
	}
	return nil, errors.Errorf("field %s is a %s field", f.name, f.kind)
}

func scalarValue(fv reflect.Value) (any, error) {
	if fv.Kind() == reflect.Ptr {
		if fv.IsNil() {
			return nil, nil
		}
		fv = fv.Elem()
	}
	if fv.Type() == timeType {
		return fv.Interface().(time.Time).Format(time.RFC3339Nano), nil
	}

	switch fv.Kind() {
	case reflect.String:
		return fv.String(), nil
	case reflect.Bool:
		if fv.Bool() {
			return int64(1), nil
		}
		return int64(0), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return fv.Int(), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u := fv.Uint()
		if u > math.MaxInt64 {
			return nil, errors.Errorf("value %d overflows INTEGER", u)
		}
		return int64(u), nil
	case reflect.Float32, reflect.Float64:
		return fv.Float(), nil
	case reflect.Slice:
		if fv.IsNil() {
			return nil, nil
		}
		return fv.Bytes(), nil
	}
	return nil, errors.Wrapf(ErrUnsupportedType, "type %v", fv.Type())
}

// Set 把查询得到的值写回标量或编码字段，value 为 nil 时字段置为零值
func (f *Field) Set(v reflect.Value, value any) error {
	fv := f.Reflect(v)
	if value == nil {
		fv.Set(reflect.Zero(fv.Type()))
		return nil
	}

	switch f.kind {
	case KindEncoded:
		data, ok := asBytes(value)
		if !ok {
			return errors.Errorf("field %s expects BLOB, got %T", f.name, value)
		}
		if fv.Kind() == reflect.Ptr {
			target := reflect.New(fv.Type().Elem())
			if err := f.codec.Unmarshal(data, target.Interface()); err != nil {
				return errors.Wrapf(err, "decode %s with %s", f.name, f.codec.Name())
			}
			fv.Set(target)
			return nil
		}
		target := reflect.New(fv.Type())
		if err := f.codec.Unmarshal(data, target.Interface()); err != nil {
			return errors.Wrapf(err, "decode %s with %s", f.name, f.codec.Name())
		}
		fv.Set(target.Elem())
		return nil
	case KindScalar:
		if fv.Kind() == reflect.Ptr {
			target := reflect.New(fv.Type().Elem())
			if err := setScalar(target.Elem(), value); err != nil {
				return errors.WithMessagef(err, "field %s", f.name)
			}
			fv.Set(target)
			return nil
		}
		return errors.WithMessagef(setScalar(fv, value), "field %s", f.name)
	}
	return errors.Errorf("field %s is a %s field", f.name, f.kind)
}

func asBytes(value any) ([]byte, bool) {
	switch v := value.(type) {
	case []byte:
		return v, true
	case string:
		return []byte(v), true
	}
	return nil, false
}

// setScalar SQLite 返回的值只有 int64、float64、string、[]byte 和 time.Time
func setScalar(dst reflect.Value, value any) error {
	if dst.Type() == timeType {
		var t time.Time
		switch v := value.(type) {
		case time.Time:
			t = v
		case string, []byte:
			s, _ := asBytes(v)
			parsed, err := time.Parse(time.RFC3339Nano, string(s))
			if err != nil {
				return errors.Wrapf(err, "parse time %q", s)
			}
			t = parsed
		default:
			return errors.Errorf("cannot convert %T to time.Time", value)
		}
		dst.Set(reflect.ValueOf(t))
		return nil
	}

	switch dst.Kind() {
	case reflect.String:
		switch v := value.(type) {
		case string:
			dst.SetString(v)
		case []byte:
			dst.SetString(string(v))
		default:
			dst.SetString(fmt.Sprint(v))
		}
		return nil

	case reflect.Bool:
		switch v := value.(type) {
		case int64:
			dst.SetBool(v != 0)
		case bool:
			dst.SetBool(v)
		case string:
			b, err := strconv.ParseBool(v)
			if err != nil {
				return errors.Wrapf(err, "parse bool %q", v)
			}
			dst.SetBool(b)
		default:
			return errors.Errorf("cannot convert %T to bool", value)
		}
		return nil

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		var n int64
		switch v := value.(type) {
		case int64:
			n = v
		case int:
			n = int64(v)
		case float64:
			n = int64(v)
		case string:
			parsed, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return errors.Wrapf(err, "parse int %q", v)
			}
			n = parsed
		default:
			return errors.Errorf("cannot convert %T to %v", value, dst.Type())
		}
		if dst.OverflowInt(n) {
			return errors.Errorf("value %d overflows %v", n, dst.Type())
		}
		dst.SetInt(n)
		return nil

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		var n int64
		switch v := value.(type) {
		case int64:
			n = v
		case int:
			n = int64(v)
		default:
			return errors.Errorf("cannot convert %T to %v", value, dst.Type())
		}
		if n < 0 || dst.OverflowUint(uint64(n)) {
			return errors.Errorf("value %d overflows %v", n, dst.Type())
		}
		dst.SetUint(uint64(n))
		return nil

	case reflect.Float32, reflect.Float64:
		switch v := value.(type) {
		case float64:
			dst.SetFloat(v)
		case int64:
			dst.SetFloat(float64(v))
		default:
			return errors.Errorf("cannot convert %T to %v", value, dst.Type())
		}
		return nil

	case reflect.Slice:
		if dst.Type().Elem().Kind() == reflect.Uint8 {
			data, ok := asBytes(value)
			if !ok {
				return errors.Errorf("cannot convert %T to %v", value, dst.Type())
			}
			b := reflect.MakeSlice(dst.Type(), len(data), len(data))
			reflect.Copy(b, reflect.ValueOf(data))
			dst.Set(b)
			return nil
		}
	}

	return errors.Wrapf(ErrUnsupportedType, "type %v", dst.Type())
}

// SQLValue 把查询条件中的 Go 值转换为 SQL 参数，规则与 Field.Value 一致
// 不支持的类型原样返回，交给驱动处理
func SQLValue(value any) any {
	if value == nil {
		return nil
	}
	rv := reflect.ValueOf(value)
	if rv.Kind() == reflect.Ptr && rv.IsNil() {
		return nil
	}
	t := rv.Type()
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if _, ok := inferSQLType(t); !ok {
		return value
	}
	v, err := scalarValue(rv)
	if err != nil {
		return value
	}
	return v
}
