package condition

import (
	"fmt"
	"strings"

	"contracthub/internal/common"
)

// Operator 比较运算符
type Operator string

const (
	OpEquals         Operator = "equals"
	OpNotEquals      Operator = "not_equals"
	OpContains       Operator = "contains"
	OpDoesNotContain Operator = "does_not_contain"
	OpGreater        Operator = ">"
	OpLess           Operator = "<"
	OpGreaterOrEqual Operator = ">="
	OpLessOrEqual    Operator = "<="
	OpIs             Operator = "is"
	OpIsNot          Operator = "is_not"
)

// ordered 是否为大小比较
func (o Operator) ordered() bool {
	switch o {
	case OpGreater, OpLess, OpGreaterOrEqual, OpLessOrEqual:
		return true
	}
	return false
}

// negated 是否为否定运算，字段缺失时视为成立
func (o Operator) negated() bool {
	return o == OpNotEquals || o == OpIsNot
}

func (o Operator) known() bool {
	switch o {
	case OpEquals, OpNotEquals, OpContains, OpDoesNotContain, OpIs, OpIsNot:
		return true
	}
	return o.ordered()
}

// Connective 与前一个条件的连接方式
type Connective string

const (
	And Connective = "AND"
	Or  Connective = "OR"
)

// normalize 空值默认为 AND
func (c Connective) normalize() Connective {
	if strings.TrimSpace(string(c)) == "" {
		return And
	}
	return Connective(strings.ToUpper(strings.TrimSpace(string(c))))
}

// FieldType 字段类型，决定比较前的值转换方式
// 为空时按合同字段的实际值推断
type FieldType string

const (
	TypeString  FieldType = "string"
	TypeNumber  FieldType = "number"
	TypeBoolean FieldType = "boolean"
	TypeDate    FieldType = "date"
	TypeEnum    FieldType = "enum"
)

func (t FieldType) known() bool {
	switch t {
	case "", TypeString, TypeNumber, TypeBoolean, TypeDate, TypeEnum:
		return true
	}
	return false
}

// Condition 单个条件
// Field 为合同字段路径，支持 a.b.c 形式的嵌套访问
type Condition struct {
	Field           string     `json:"field" yaml:"field"`
	Operator        Operator   `json:"operator" yaml:"operator"`
	Value           any        `json:"value" yaml:"value"`
	LogicalOperator Connective `json:"logicalOperator,omitempty" yaml:"logical_operator,omitempty"`
	FieldType       FieldType  `json:"fieldType,omitempty" yaml:"field_type,omitempty"`
}

// String 可读形式，用于日志与诊断
func (c Condition) String() string {
	return fmt.Sprintf("%s %s %s", c.Field, c.Operator, formatLiteral(c.Value))
}

// Validate 校验条件列表
// 未知运算符、连接符、字段类型，或声明类型下无法转换的比较值均视为校验失败
func Validate(conds []Condition) error {
	for i, c := range conds {
		if strings.TrimSpace(c.Field) == "" {
			return common.ValidationError("条件[%d]缺少字段", i)
		}
		if !c.Operator.known() {
			return common.ValidationError("条件[%d]运算符无效: %s", i, c.Operator)
		}
		if conn := c.LogicalOperator.normalize(); conn != And && conn != Or {
			return common.ValidationError("条件[%d]逻辑连接符无效: %s", i, c.LogicalOperator)
		}
		if !c.FieldType.known() {
			return common.ValidationError("条件[%d]字段类型无效: %s", i, c.FieldType)
		}
		if c.Operator.ordered() && (c.FieldType == TypeBoolean || c.FieldType == TypeEnum) {
			return common.ValidationError("条件[%d]类型 %s 不支持运算符 %s", i, c.FieldType, c.Operator)
		}
		if c.FieldType != "" && c.FieldType != TypeEnum {
			if _, err := coerce(c.Value, c.FieldType); err != nil {
				return common.ValidationError("条件[%d]比较值无法转换为 %s: %v", i, c.FieldType, err)
			}
		}
	}
	return nil
}
