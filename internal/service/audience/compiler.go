package audience

import (
	"strconv"
	"strings"

	"gitee.com/flycash/broadcast-platform/internal/domain"
	"github.com/gotomicro/ego/core/elog"
)

// Hasher 基础字段在存储层只有哈希可以比较
type Hasher interface {
	Hash(value string) string
	HashEmail(email string) string
}

// 基础字段到哈希列
var basicFields = map[string]string{
	"email":      "email_hash",
	"phone":      "phone_hash",
	"first_name": "first_name_hash",
	"last_name":  "last_name_hash",
}

var includeOperators = map[domain.Operator]domain.Comparison{
	domain.OperatorEQ:       domain.ComparisonEQ,
	domain.OperatorGT:       domain.ComparisonGT,
	domain.OperatorLT:       domain.ComparisonLT,
	domain.OperatorGTE:      domain.ComparisonGTE,
	domain.OperatorLTE:      domain.ComparisonLTE,
	domain.OperatorContains: domain.ComparisonContains,
}

var excludeOperators = map[domain.Operator]domain.Comparison{
	domain.OperatorNEQ:            domain.ComparisonEQ,
	domain.OperatorDoesNotContain: domain.ComparisonContains,
}

// Compiler 把受众过滤条件编译成存储层可以执行的谓词
type Compiler struct {
	hasher Hasher
	logger *elog.Component
}

func NewCompiler(hasher Hasher) *Compiler {
	return &Compiler{hasher: hasher, logger: elog.DefaultLogger}
}

// Compile 无法识别的条件记录日志之后跳过
func (c *Compiler) Compile(filters []domain.Filter) domain.AudienceQuery {
	var q domain.AudienceQuery
	for _, f := range filters {
		cmp, exclude, ok := comparison(f.Operator)
		if !ok {
			c.logger.Warn("未知的受众过滤操作符，跳过",
				elog.String("property", f.Property),
				elog.String("operator", string(f.Operator)))
			continue
		}
		p, ok := c.predicate(f, cmp)
		if !ok {
			continue
		}
		if exclude {
			q.Exclude = append(q.Exclude, p)
		} else {
			q.Include = append(q.Include, p)
		}
	}
	return q
}

func comparison(op domain.Operator) (domain.Comparison, bool, bool) {
	if cmp, ok := includeOperators[op]; ok {
		return cmp, false, true
	}
	if cmp, ok := excludeOperators[op]; ok {
		return cmp, true, true
	}
	return "", false, false
}

func (c *Compiler) predicate(f domain.Filter, cmp domain.Comparison) (domain.Predicate, bool) {
	if column, ok := basicFields[f.Property]; ok {
		if cmp != domain.ComparisonEQ {
			c.logger.Warn("基础字段只支持等值比较，跳过",
				elog.String("property", f.Property),
				elog.String("operator", string(f.Operator)))
			return domain.Predicate{}, false
		}
		value := c.hasher.Hash(f.Value)
		if f.Property == "email" {
			value = c.hasher.HashEmail(f.Value)
		}
		return domain.Predicate{Column: column, Op: cmp, Value: value, ValueType: domain.ValueTypeString}, true
	}

	p := domain.Predicate{
		Path:      strings.Split(f.Property, "."),
		Op:        cmp,
		ValueType: f.ValueType,
	}
	switch f.ValueType {
	case domain.ValueTypeNumber:
		v, err := strconv.ParseFloat(strings.TrimSpace(f.Value), 64)
		if err != nil || cmp == domain.ComparisonContains {
			c.logger.Warn("数值过滤条件非法，跳过",
				elog.String("property", f.Property),
				elog.String("value", f.Value),
				elog.FieldErr(err))
			return domain.Predicate{}, false
		}
		p.Value = v
	case domain.ValueTypeDatetime:
		v, ok := domain.NormalizeDatetime(f.Value)
		if !ok {
			c.logger.Warn("时间过滤条件非法，跳过",
				elog.String("property", f.Property),
				elog.String("value", f.Value))
			return domain.Predicate{}, false
		}
		p.Value = v
	default:
		p.ValueType = domain.ValueTypeString
		p.Value = f.Value
	}
	return p, true
}
