package condition

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"
)

var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// coerce 按字段类型转换值
func coerce(v any, t FieldType) (any, error) {
	switch t {
	case TypeNumber:
		return toNumber(v)
	case TypeBoolean:
		return toBool(v)
	case TypeDate:
		return toDate(v)
	case TypeEnum:
		return toStrings(v), nil
	default:
		return toString(v), nil
	}
}

func toNumber(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int8:
		return float64(n), nil
	case int16:
		return float64(n), nil
	case int32:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case uint:
		return float64(n), nil
	case uint8:
		return float64(n), nil
	case uint16:
		return float64(n), nil
	case uint32:
		return float64(n), nil
	case uint64:
		return float64(n), nil
	case json.Number:
		return n.Float64()
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, fmt.Errorf("不是数字: %q", n)
		}
		return f, nil
	}
	return 0, fmt.Errorf("不是数字: %v", v)
}

func toBool(v any) (bool, error) {
	switch b := v.(type) {
	case bool:
		return b, nil
	case string:
		parsed, err := strconv.ParseBool(strings.TrimSpace(b))
		if err != nil {
			return false, fmt.Errorf("不是布尔值: %q", b)
		}
		return parsed, nil
	}
	return false, fmt.Errorf("不是布尔值: %v", v)
}

func toDate(v any) (time.Time, error) {
	switch d := v.(type) {
	case time.Time:
		return d, nil
	case *time.Time:
		if d != nil {
			return *d, nil
		}
	case string:
		s := strings.TrimSpace(d)
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t, nil
			}
		}
		return time.Time{}, fmt.Errorf("不是日期: %q", d)
	}
	return time.Time{}, fmt.Errorf("不是日期: %v", v)
}

func toString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case nil:
		return ""
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case time.Time:
		return s.Format(time.RFC3339)
	}
	return fmt.Sprint(v)
}

// toStrings 将单值或数组统一为字符串列表
func toStrings(v any) []string {
	if v == nil {
		return nil
	}
	if ss, ok := v.([]string); ok {
		return ss
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
		out := make([]string, 0, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			out = append(out, toString(rv.Index(i).Interface()))
		}
		return out
	}
	return []string{toString(v)}
}

func isList(v any) bool {
	if v == nil {
		return false
	}
	k := reflect.ValueOf(v).Kind()
	return k == reflect.Slice || k == reflect.Array
}

func isNumeric(v any) bool {
	switch v.(type) {
	case float64, float32, int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64, json.Number:
		return true
	}
	return false
}

// inferType 未声明类型时按字段实际值推断
func inferType(field any, op Operator, literal any) FieldType {
	switch field.(type) {
	case bool:
		return TypeBoolean
	case time.Time, *time.Time:
		return TypeDate
	}
	if isNumeric(field) {
		return TypeNumber
	}
	if isList(field) {
		return TypeEnum
	}
	if s, ok := field.(string); ok {
		if isNumeric(literal) {
			if _, err := toNumber(s); err == nil {
				return TypeNumber
			}
		}
		if op.ordered() {
			if _, err := toNumber(s); err == nil {
				if _, err := toNumber(literal); err == nil {
					return TypeNumber
				}
			}
			if _, err := toDate(s); err == nil {
				if _, err := toDate(literal); err == nil {
					return TypeDate
				}
			}
		}
	}
	return TypeString
}

func formatLiteral(v any) string {
	switch val := v.(type) {
	case string:
		return strconv.Quote(val)
	case nil:
		return "null"
	}
	if isList(v) {
		return "[" + strings.Join(toStrings(v), ", ") + "]"
	}
	return toString(v)
}
