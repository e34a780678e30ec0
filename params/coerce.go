package params

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// ParamType 参数强制转换的目标类型
type ParamType string

const (
	TypeString ParamType = "string"
	TypeInt    ParamType = "int"
	TypeFloat  ParamType = "float"
	TypeBool   ParamType = "bool"
	TypeArray  ParamType = "array"
	TypeObject ParamType = "object"
	TypeNull   ParamType = "null"
)

// coerce 将 value 转换为 typ 指定的类型
// 每种类型的失败场景都显式报错，携带参数名和原始值
func coerce(name string, value any, typ ParamType) (any, error) {
	switch typ {
	case TypeString:
		return coerceString(value), nil
	case TypeInt:
		return coerceInt(name, value)
	case TypeFloat:
		return coerceFloat(name, value)
	case TypeBool:
		return coerceBool(name, value)
	case TypeArray:
		return coerceArray(name, value)
	case TypeObject:
		return coerceObject(name, value)
	case TypeNull:
		return nil, nil
	default:
		return nil, &ParameterError{Name: name, Value: value, Msg: fmt.Sprintf("unknown target type %q", typ)}
	}
}

func coerceString(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", v)
	}
}

func coerceInt(name string, value any) (int, error) {
	switch v := value.(type) {
	case int:
		return v, nil
	case int32:
		return int(v), nil
	case int64:
		return int(v), nil
	case float64:
		return int(v), nil
	case float32:
		return int(v), nil
	case bool:
		if v {
			return 1, nil
		}
		return 0, nil
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0, &ParameterError{Name: name, Value: value, Msg: fmt.Sprintf("cannot convert %q to int", v)}
		}
		return n, nil
	default:
		return 0, &ParameterError{Name: name, Value: value, Msg: fmt.Sprintf("cannot convert %T to int", value)}
	}
}

func coerceFloat(name string, value any) (float64, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, &ParameterError{Name: name, Value: value, Msg: fmt.Sprintf("cannot convert %q to float", v)}
		}
		return f, nil
	default:
		return 0, &ParameterError{Name: name, Value: value, Msg: fmt.Sprintf("cannot convert %T to float", value)}
	}
}

// coerceBool 布尔转换
// 识别大小写不敏感的 true/1/yes/on 与 false/0/no/off/""，
// 其余非空字符串一律视为 true
func coerceBool(name string, value any) (bool, error) {
	switch v := value.(type) {
	case bool:
		return v, nil
	case int:
		return v != 0, nil
	case int64:
		return v != 0, nil
	case float64:
		return v != 0, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true", "1", "yes", "on":
			return true, nil
		case "false", "0", "no", "off", "":
			return false, nil
		default:
			return true, nil
		}
	case nil:
		return false, nil
	default:
		return false, &ParameterError{Name: name, Value: value, Msg: fmt.Sprintf("cannot convert %T to bool", value)}
	}
}

// coerceArray 数组转换
// 依次接受：切片原样返回、可 JSON 解码的字符串、逗号分隔字符串（兜底）、
// map 原样返回（与源模型中对象转关联数组的行为对应）
func coerceArray(name string, value any) (any, error) {
	switch v := value.(type) {
	case []any:
		return v, nil
	case []string:
		out := make([]any, len(v))
		for i, s := range v {
			out[i] = s
		}
		return out, nil
	case map[string]any:
		return v, nil
	case string:
		trimmed := strings.TrimSpace(v)
		if strings.HasPrefix(trimmed, "[") || strings.HasPrefix(trimmed, "{") {
			var decoded any
			if err := json.Unmarshal([]byte(trimmed), &decoded); err == nil {
				return decoded, nil
			}
		}
		// 逗号分隔兜底
		parts := strings.Split(v, ",")
		out := make([]any, 0, len(parts))
		for _, p := range parts {
			out = append(out, strings.TrimSpace(p))
		}
		return out, nil
	default:
		return nil, &ParameterError{Name: name, Value: value, Msg: fmt.Sprintf("cannot convert %T to array", value)}
	}
}

// coerceObject 对象转换：map 原样返回，字符串按 JSON 对象解码，
// 结构体经 JSON 往返转为 map
func coerceObject(name string, value any) (map[string]any, error) {
	switch v := value.(type) {
	case map[string]any:
		return v, nil
	case string:
		var decoded map[string]any
		if err := json.Unmarshal([]byte(v), &decoded); err != nil {
			return nil, &ParameterError{Name: name, Value: value, Msg: fmt.Sprintf("cannot decode %q as object", v)}
		}
		return decoded, nil
	case nil:
		return nil, &ParameterError{Name: name, Value: value, Msg: "cannot convert nil to object"}
	default:
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, &ParameterError{Name: name, Value: value, Msg: fmt.Sprintf("cannot convert %T to object", value)}
		}
		var decoded map[string]any
		if err := json.Unmarshal(raw, &decoded); err != nil {
			return nil, &ParameterError{Name: name, Value: value, Msg: fmt.Sprintf("cannot convert %T to object", value)}
		}
		return decoded, nil
	}
}
