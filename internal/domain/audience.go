package domain

import (
	"strings"
	"time"
)

// Operator 受众过滤条件的操作符
type Operator string

const (
	OperatorEQ             Operator = "EQ"
	OperatorNEQ            Operator = "NEQ"
	OperatorGT             Operator = "GT"
	OperatorLT             Operator = "LT"
	OperatorGTE            Operator = "GTE"
	OperatorLTE            Operator = "LTE"
	OperatorContains       Operator = "CONTAINS"
	OperatorDoesNotContain Operator = "DOES_NOT_CONTAIN"
)

// ValueType 过滤条件声明的值类型
type ValueType string

const (
	ValueTypeString   ValueType = "STRING"
	ValueTypeNumber   ValueType = "NUMBER"
	ValueTypeDatetime ValueType = "DATETIME"
)

// Filter 受众的一个过滤条件，同一个受众内 Property 唯一
type Filter struct {
	Property  string
	Operator  Operator
	Value     string
	ValueType ValueType
}

// Audience 受众
type Audience struct {
	ID      int64
	OrgID   int64
	Name    string
	Filters []Filter
}

// Comparison 编译后的比较方式
type Comparison string

const (
	ComparisonEQ       Comparison = "eq"
	ComparisonGT       Comparison = "gt"
	ComparisonLT       Comparison = "lt"
	ComparisonGTE      Comparison = "gte"
	ComparisonLTE      Comparison = "lte"
	ComparisonContains Comparison = "contains"
)

// Predicate 编译后的谓词。Column 非空时比较基础字段的哈希列，否则比较 metadata 中的路径
type Predicate struct {
	Column    string
	Path      []string
	Op        Comparison
	Value     any
	ValueType ValueType
}

func (p Predicate) IsBasic() bool {
	return p.Column != ""
}

// AudienceQuery 包含与排除两组谓词，排除组中任意一个谓词命中即被排除
type AudienceQuery struct {
	Include []Predicate
	Exclude []Predicate
}

// DatetimeLayout 时间过滤值和元数据中的时间都统一成 UTC 的这个格式，按字符串比较就是按时间比较
const DatetimeLayout = "2006-01-02T15:04:05Z"

var datetimeLayouts = []string{time.RFC3339Nano, time.DateTime, time.DateOnly}

// ParseDatetime 支持 RFC3339、"2006-01-02 15:04:05" 和日期，没有时区的按 UTC
func ParseDatetime(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	var err error
	for _, layout := range datetimeLayouts {
		var t time.Time
		if t, err = time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, err
}

func NormalizeDatetime(value string) (string, bool) {
	t, err := ParseDatetime(value)
	if err != nil {
		return "", false
	}
	return t.UTC().Format(DatetimeLayout), true
}

// DatetimeFields 挑出元数据中能解析成时间的字符串，路径不变，值统一成 DatetimeLayout
func DatetimeFields(metadata map[string]any) map[string]any {
	res := make(map[string]any, len(metadata))
	for k, v := range metadata {
		switch val := v.(type) {
		case string:
			if t, ok := NormalizeDatetime(val); ok {
				res[k] = t
			}
		case map[string]any:
			if sub := DatetimeFields(val); len(sub) > 0 {
				res[k] = sub
			}
		}
	}
	return res
}
