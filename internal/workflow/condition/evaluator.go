package condition

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/Knetic/govaluate"
)

// Evaluate 按顺序对条件链求值
// 每个条件通过其 LogicalOperator 与前面的结果左结合，无优先级分组；空列表恒为 true
func Evaluate(conds []Condition, fields map[string]any) (bool, error) {
	if len(conds) == 0 {
		return true, nil
	}
	if err := Validate(conds); err != nil {
		return false, err
	}

	expression, err := govaluate.NewEvaluableExpression(chain(conds, paramName))
	if err != nil {
		return false, fmt.Errorf("解析条件表达式失败: %w", err)
	}

	parameters := make(map[string]any, len(conds))
	for i, c := range conds {
		parameters[paramName(i, c)] = evaluateOne(c, fields)
	}

	result, err := expression.Evaluate(parameters)
	if err != nil {
		return false, fmt.Errorf("评估条件表达式失败: %w", err)
	}
	matched, ok := result.(bool)
	if !ok {
		return false, fmt.Errorf("条件表达式结果不是布尔值: %v", result)
	}
	return matched, nil
}

// Explain 返回条件链的可读形式，展示实际的结合顺序
func Explain(conds []Condition) string {
	if len(conds) == 0 {
		return "true"
	}
	return chain(conds, func(_ int, c Condition) string {
		return "[" + c.String() + "]"
	})
}

func paramName(i int, _ Condition) string {
	return fmt.Sprintf("c%d", i)
}

// chain 生成左结合表达式，例如 ((c0 && c1) || c2)
func chain(conds []Condition, term func(int, Condition) string) string {
	var b strings.Builder
	b.WriteString(term(0, conds[0]))
	for i := 1; i < len(conds); i++ {
		op := "&&"
		if conds[i].LogicalOperator.normalize() == Or {
			op = "||"
		}
		prev := b.String()
		b.Reset()
		fmt.Fprintf(&b, "(%s %s %s)", prev, op, term(i, conds[i]))
	}
	return b.String()
}

// evaluateOne 对单个条件求值
// 字段缺失时返回 false，否定运算返回 true
func evaluateOne(c Condition, fields map[string]any) bool {
	value, ok := lookup(fields, c.Field)
	if !ok {
		return c.Operator.negated()
	}

	switch c.Operator {
	case OpEquals, OpIs:
		return equal(value, c)
	case OpNotEquals, OpIsNot:
		return !equal(value, c)
	case OpContains:
		return contains(value, c)
	case OpDoesNotContain:
		return !contains(value, c)
	default:
		cmp, ok := compare(value, c)
		if !ok {
			return false
		}
		switch c.Operator {
		case OpGreater:
			return cmp > 0
		case OpLess:
			return cmp < 0
		case OpGreaterOrEqual:
			return cmp >= 0
		case OpLessOrEqual:
			return cmp <= 0
		}
	}
	return false
}

// lookup 按点分路径读取字段，完整键名优先
func lookup(fields map[string]any, path string) (any, bool) {
	if v, ok := fields[path]; ok {
		return v, v != nil
	}
	var current any = fields
	for _, part := range strings.Split(path, ".") {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return current, current != nil
}

func fieldType(value any, c Condition) FieldType {
	if c.FieldType != "" {
		return c.FieldType
	}
	return inferType(value, c.Operator, c.Value)
}

func equal(value any, c Condition) bool {
	t := fieldType(value, c)
	if t == TypeEnum || isList(value) || isList(c.Value) {
		return enumMatch(value, c.Value)
	}
	left, err := coerce(value, t)
	if err != nil {
		return false
	}
	right, err := coerce(c.Value, t)
	if err != nil {
		return false
	}
	if t == TypeDate {
		return left.(time.Time).Equal(right.(time.Time))
	}
	return left == right
}

// enumMatch 枚举与数组的成员判断
// 字段为单值时判断是否属于比较值列表，字段为数组时判断比较值是否都在其中
func enumMatch(value, literal any) bool {
	fieldValues := toStrings(value)
	literalValues := toStrings(literal)
	if len(literalValues) == 0 {
		return len(fieldValues) == 0
	}
	if !isList(value) {
		return slices.Contains(literalValues, fieldValues[0])
	}
	for _, want := range literalValues {
		if !slices.Contains(fieldValues, want) {
			return false
		}
	}
	return true
}

func contains(value any, c Condition) bool {
	if isList(value) || c.FieldType == TypeEnum {
		return enumMatch(value, c.Value) && len(toStrings(c.Value)) > 0
	}
	needle := toString(c.Value)
	if needle == "" {
		return false
	}
	return strings.Contains(toString(value), needle)
}

// compare 返回 -1/0/1，类型不可比较时 ok 为 false
func compare(value any, c Condition) (int, bool) {
	switch fieldType(value, c) {
	case TypeNumber:
		left, err := toNumber(value)
		if err != nil {
			return 0, false
		}
		right, err := toNumber(c.Value)
		if err != nil {
			return 0, false
		}
		switch {
		case left < right:
			return -1, true
		case left > right:
			return 1, true
		}
		return 0, true
	case TypeDate:
		left, err := toDate(value)
		if err != nil {
			return 0, false
		}
		right, err := toDate(c.Value)
		if err != nil {
			return 0, false
		}
		return left.Compare(right), true
	case TypeString:
		return strings.Compare(toString(value), toString(c.Value)), true
	}
	return 0, false
}
