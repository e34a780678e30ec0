package params

import (
	"fmt"
	"regexp"
	"sort"
)

// Rule 单个参数的校验规则集
type Rule struct {
	// Required 参数必须存在
	Required bool
	// Type 存在时强制转换到该类型，转换失败即校验失败
	Type ParamType
	// Min / Max 数值范围（对 int/float 生效）
	Min *float64
	// Max 见 Min
	Max *float64
	// In 枚举白名单
	In []any
	// Regex 字符串正则约束
	Regex string
}

// Schema 参数名到规则的映射
type Schema map[string]Rule

// Validate 按 schema 逐项校验，遇到第一个违规即失败并指出参数名
func (b *ParameterBag) Validate(schema Schema) error {
	for _, name := range sortedRuleNames(schema) {
		rule := schema[name]

		if !b.Has(name) {
			if rule.Required {
				return &ParameterError{Name: name, Msg: "required parameter is missing"}
			}
			continue
		}

		value, _ := b.Get(name)

		if rule.Type != "" {
			coerced, err := coerce(name, value, rule.Type)
			if err != nil {
				return err
			}
			value = coerced
		}

		if rule.Min != nil || rule.Max != nil {
			num, err := coerceFloat(name, value)
			if err != nil {
				return err
			}
			if rule.Min != nil && num < *rule.Min {
				return &ParameterError{Name: name, Value: value, Msg: fmt.Sprintf("value %v is below minimum %v", num, *rule.Min)}
			}
			if rule.Max != nil && num > *rule.Max {
				return &ParameterError{Name: name, Value: value, Msg: fmt.Sprintf("value %v exceeds maximum %v", num, *rule.Max)}
			}
		}

		if len(rule.In) > 0 {
			found := false
			for _, allowed := range rule.In {
				if fmt.Sprintf("%v", allowed) == fmt.Sprintf("%v", value) {
					found = true
					break
				}
			}
			if !found {
				return &ParameterError{Name: name, Value: value, Msg: fmt.Sprintf("value %v is not in the allowed set", value)}
			}
		}

		if rule.Regex != "" {
			re, err := regexp.Compile(rule.Regex)
			if err != nil {
				return &ParameterError{Name: name, Msg: fmt.Sprintf("invalid regex constraint: %v", err)}
			}
			if !re.MatchString(coerceString(value)) {
				return &ParameterError{Name: name, Value: value, Msg: fmt.Sprintf("value %v does not match %q", value, rule.Regex)}
			}
		}
	}
	return nil
}

func sortedRuleNames(schema Schema) []string {
	names := make([]string, 0, len(schema))
	for name := range schema {
		names = append(names, name)
	}
	// 稳定的校验顺序，便于测试和可预期的首个违规报告
	sort.Strings(names)
	return names
}
