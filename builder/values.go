package builder

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/flaphl/injection/container"
)

// paramToken 匹配一个 %name% 参数引用
var paramToken = regexp.MustCompile(`%[^%\s]+%`)

// resolveValue 值解析：把定义中的 "@id" / "%name%" token 换成实际值
// 规则：
//   - 整串恰为 "@id"           -> 容器取服务（失败向上冒泡）
//   - 整串恰为 "%name%"        -> 取参数原值，保留类型；未定义时原样返回 token
//   - 含一个及以上内嵌 token   -> 逐个替换并字符串化拼接；未定义的 token 原样保留
//   - 列表 / 映射              -> 逐元素递归
//   - 其余值                   -> 原样返回
func resolveValue(c *container.Container, value any) (any, error) {
	switch v := value.(type) {
	case string:
		return resolveString(c, v)
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			resolved, err := resolveValue(c, item)
			if err != nil {
				return nil, err
			}
			out[i] = resolved
		}
		return out, nil
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, item := range v {
			resolved, err := resolveValue(c, item)
			if err != nil {
				return nil, err
			}
			out[k] = resolved
		}
		return out, nil
	default:
		return value, nil
	}
}

func resolveString(c *container.Container, s string) (any, error) {
	// 服务引用：整串以 @ 开头
	if strings.HasPrefix(s, "@") && len(s) > 1 {
		return c.Get(s[1:])
	}

	// 单 token 参数引用：保留参数的原始类型
	if isSingleToken(s) {
		return c.GetParameterDefault(s[1:len(s)-1], s), nil
	}

	// 多 token / 混合文本：字符串插值，未定义的引用原样保留
	if strings.Contains(s, "%") {
		return paramToken.ReplaceAllStringFunc(s, func(tok string) string {
			name := tok[1 : len(tok)-1]
			return fmt.Sprintf("%v", c.GetParameterDefault(name, tok))
		}), nil
	}

	return s, nil
}

// isSingleToken 判断整串是否恰好是一个 %name% 引用
func isSingleToken(s string) bool {
	if len(s) < 3 || s[0] != '%' || s[len(s)-1] != '%' {
		return false
	}
	inner := s[1 : len(s)-1]
	return inner != "" && !strings.ContainsAny(inner, "% \t")
}
