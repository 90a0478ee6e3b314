package condition

import (
	"testing"

	"contracthub/internal/common"

	"github.com/stretchr/testify/require"
)

func TestEvaluateOperators(t *testing.T) {
	fields := map[string]any{
		"value":      float64(500000),
		"region":     "EU",
		"title":      "Master Services Agreement",
		"renewable":  true,
		"startDate":  "2026-03-01",
		"tags":       []any{"vendor", "critical"},
		"amountText": "1200",
		"counterparty": map[string]any{
			"country": "DE",
			"tier":    float64(2),
		},
	}

	cases := []struct {
		name string
		cond Condition
		want bool
	}{
		{"greater than false", Condition{Field: "value", Operator: OpGreater, Value: 1000000}, false},
		{"less than true", Condition{Field: "value", Operator: OpLess, Value: 1000000}, true},
		{"gte boundary", Condition{Field: "value", Operator: OpGreaterOrEqual, Value: "500000"}, true},
		{"lte boundary", Condition{Field: "value", Operator: OpLessOrEqual, Value: 500000}, true},
		{"equals string", Condition{Field: "region", Operator: OpEquals, Value: "EU"}, true},
		{"equals is case sensitive", Condition{Field: "region", Operator: OpEquals, Value: "eu"}, false},
		{"not equals", Condition{Field: "region", Operator: OpNotEquals, Value: "US"}, true},
		{"is boolean", Condition{Field: "renewable", Operator: OpIs, Value: true}, true},
		{"is boolean from string", Condition{Field: "renewable", Operator: OpIs, Value: "true", FieldType: TypeBoolean}, true},
		{"is not boolean", Condition{Field: "renewable", Operator: OpIsNot, Value: false}, true},
		{"contains substring", Condition{Field: "title", Operator: OpContains, Value: "Services"}, true},
		{"does not contain substring", Condition{Field: "title", Operator: OpDoesNotContain, Value: "Lease"}, true},
		{"array contains", Condition{Field: "tags", Operator: OpContains, Value: "critical"}, true},
		{"array does not contain", Condition{Field: "tags", Operator: OpDoesNotContain, Value: "internal"}, true},
		{"enum membership", Condition{Field: "region", Operator: OpEquals, Value: []any{"EU", "UK"}, FieldType: TypeEnum}, true},
		{"enum non membership", Condition{Field: "region", Operator: OpEquals, Value: []any{"US", "CA"}}, false},
		{"date after", Condition{Field: "startDate", Operator: OpGreater, Value: "2026-01-01", FieldType: TypeDate}, true},
		{"date inferred", Condition{Field: "startDate", Operator: OpLess, Value: "2026-01-01T00:00:00Z"}, false},
		{"numeric string", Condition{Field: "amountText", Operator: OpGreater, Value: 1000}, true},
		{"declared number on text", Condition{Field: "title", Operator: OpGreater, Value: 1, FieldType: TypeNumber}, false},
		{"nested path", Condition{Field: "counterparty.country", Operator: OpEquals, Value: "DE"}, true},
		{"nested number", Condition{Field: "counterparty.tier", Operator: OpGreaterOrEqual, Value: 2}, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Evaluate([]Condition{tc.cond}, fields)
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestEvaluateMissingField(t *testing.T) {
	fields := map[string]any{"value": 10, "owner": nil}

	cases := []struct {
		op   Operator
		want bool
	}{
		{OpEquals, false},
		{OpIs, false},
		{OpContains, false},
		{OpDoesNotContain, false},
		{OpGreater, false},
		{OpLessOrEqual, false},
		{OpNotEquals, true},
		{OpIsNot, true},
	}
	for _, tc := range cases {
		t.Run(string(tc.op), func(t *testing.T) {
			got, err := Evaluate([]Condition{{Field: "region", Operator: tc.op, Value: "EU"}}, fields)
			require.NoError(t, err)
			require.Equal(t, tc.want, got)

			got, err = Evaluate([]Condition{{Field: "owner", Operator: tc.op, Value: "EU"}}, fields)
			require.NoError(t, err)
			require.Equal(t, tc.want, got, "nil counts as missing")

			got, err = Evaluate([]Condition{{Field: "value.currency", Operator: tc.op, Value: "EU"}}, fields)
			require.NoError(t, err)
			require.Equal(t, tc.want, got, "path through a scalar counts as missing")
		})
	}
}

func TestEvaluateEmptyListIsTrue(t *testing.T) {
	got, err := Evaluate(nil, map[string]any{})
	require.NoError(t, err)
	require.True(t, got)
	require.Equal(t, "true", Explain(nil))
}

func TestEvaluateLeftToRightFold(t *testing.T) {
	fields := map[string]any{"a": 1, "b": 2, "c": 3}
	isTrue := func(field string) Condition {
		return Condition{Field: field, Operator: OpGreater, Value: 0}
	}
	isFalse := func(field string) Condition {
		return Condition{Field: field, Operator: OpGreater, Value: 100}
	}

	// true OR false AND false: precedence would give true, the flat fold gives false
	conds := []Condition{isTrue("a"), isFalse("b"), isFalse("c")}
	conds[1].LogicalOperator = Or
	conds[2].LogicalOperator = And
	got, err := Evaluate(conds, fields)
	require.NoError(t, err)
	require.False(t, got)
	require.Equal(t, "(([a > 0] || [b > 100]) && [c > 100])", Explain(conds))

	// false AND false OR true: fold gives true
	conds = []Condition{isFalse("a"), isFalse("b"), isTrue("c")}
	conds[2].LogicalOperator = "or"
	got, err = Evaluate(conds, fields)
	require.NoError(t, err)
	require.True(t, got)

	// connective on the first condition is ignored
	conds = []Condition{isTrue("a")}
	conds[0].LogicalOperator = Or
	got, err = Evaluate(conds, fields)
	require.NoError(t, err)
	require.True(t, got)
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name string
		cond Condition
	}{
		{"unknown operator", Condition{Field: "value", Operator: "between", Value: 1}},
		{"missing field", Condition{Operator: OpEquals, Value: 1}},
		{"unknown connective", Condition{Field: "value", Operator: OpEquals, Value: 1, LogicalOperator: "XOR"}},
		{"unknown type", Condition{Field: "value", Operator: OpEquals, Value: 1, FieldType: "money"}},
		{"ordered boolean", Condition{Field: "flag", Operator: OpGreater, Value: true, FieldType: TypeBoolean}},
		{"bad number literal", Condition{Field: "value", Operator: OpGreater, Value: "lots", FieldType: TypeNumber}},
		{"bad date literal", Condition{Field: "signedAt", Operator: OpLess, Value: "soon", FieldType: TypeDate}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Evaluate([]Condition{tc.cond}, map[string]any{"value": 1})
			require.Error(t, err)
			require.ErrorIs(t, err, common.ErrValidation)
		})
	}

	require.NoError(t, Validate([]Condition{
		{Field: "value", Operator: OpGreater, Value: 1000000, FieldType: TypeNumber},
		{Field: "region", Operator: OpEquals, Value: []string{"EU"}, FieldType: TypeEnum, LogicalOperator: Or},
	}))
}
