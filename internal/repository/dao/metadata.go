package dao

import (
	"strings"

	"gitee.com/flycash/broadcast-platform/internal/domain"
)

const dialectMySQL = "mysql"

// metadataExpr 取 metadata 中某个路径的值，路径作为参数传入。
// 路径不存在时结果为 NULL，任何比较都不成立。
// 时间从 metadata_times 里取，两边都是 domain.DatetimeLayout，直接按字符串比较
func metadataExpr(dialect string, vt domain.ValueType) string {
	column := "metadata"
	if vt == domain.ValueTypeDatetime {
		column = "metadata_times"
	}
	if dialect == dialectMySQL {
		base := "JSON_UNQUOTE(JSON_EXTRACT(" + column + ", ?))"
		if vt == domain.ValueTypeNumber {
			return "CAST(" + base + " AS DECIMAL(38,10))"
		}
		return base
	}
	// sqlite
	if vt == domain.ValueTypeNumber {
		return "CAST(json_extract(" + column + ", ?) AS REAL)"
	}
	return "CAST(json_extract(" + column + ", ?) AS TEXT)"
}

// jsonPath a.b 转换成 $."a"."b"
func jsonPath(path []string) string {
	var sb strings.Builder
	sb.WriteString("$")
	for _, seg := range path {
		sb.WriteString(`."`)
		sb.WriteString(strings.ReplaceAll(seg, `"`, ""))
		sb.WriteString(`"`)
	}
	return sb.String()
}
