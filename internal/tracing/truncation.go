package tracing

import (
	"path/filepath"
	"strings"
)

// span属性长度上限（按字符计）
const (
	DefaultMaxLength = 200
	MaxSQLLength     = 500
	MaxRedisLength   = 100
	MaxMessageLength = 120
)

const ellipsis = "..."

// TruncateString 超长时保留首尾，中间用...连接
func TruncateString(s string, maxLength int) string {
	runes := []rune(s)
	if len(runes) <= maxLength {
		return s
	}
	if maxLength <= len(ellipsis) {
		return string(runes[:max(maxLength, 0)])
	}
	keep := max((maxLength-len(ellipsis))/2, 1)
	return keepEnds(runes, keep, keep, ellipsis)
}

// MaskPII 只露出首尾几个字符：
//
//	"张三" -> "张*"  "王小明" -> "王*明"  "13812345678" -> "13*******78"
func MaskPII(value string) string {
	runes := []rune(value)
	switch n := len(runes); {
	case n == 0:
		return ""
	case n == 1:
		return "*"
	case n == 2:
		return string(runes[0]) + "*"
	case n <= 4:
		return keepEnds(runes, 1, 1, strings.Repeat("*", n-2))
	default:
		return keepEnds(runes, 2, 2, strings.Repeat("*", n-4))
	}
}

// MaskFileName 简历文件名常带候选人姓名，保留扩展名，其余掩码
func MaskFileName(name string) string {
	name = filepath.Base(name)
	if name == "." || name == string(filepath.Separator) {
		return ""
	}
	ext := filepath.Ext(name)
	return MaskPII(strings.TrimSuffix(name, ext)) + ext
}

func keepEnds(runes []rune, head, tail int, middle string) string {
	return string(runes[:head]) + middle + string(runes[len(runes)-tail:])
}

func SafeSQL(sql string) string { return TruncateString(sql, MaxSQLLength) }

func SafeRedisKey(key string) string { return TruncateString(key, MaxRedisLength) }

// SafeMessage 聊天消息和JD文本
func SafeMessage(content string) string { return TruncateString(content, MaxMessageLength) }
