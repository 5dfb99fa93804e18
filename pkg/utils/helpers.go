package utils

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"strings"

	"gorm.io/datatypes"
)

// CalculateMD5 十六进制MD5，用于文件和JD去重
func CalculateMD5(data []byte) string {
	sum := md5.Sum(data)
	return hex.EncodeToString(sum[:])
}

// ConvertMapToJSON 将分组的字符串数组转换为JSON对象，空分组被省略
func ConvertMapToJSON(groups map[string][]string) datatypes.JSON {
	trimmed := make(map[string][]string, len(groups))
	for k, v := range groups {
		if len(v) > 0 {
			trimmed[k] = v
		}
	}
	jsonBytes, err := json.Marshal(trimmed)
	if err != nil {
		return datatypes.JSON("{}")
	}
	return datatypes.JSON(jsonBytes)
}

// Float64Ptr 返回float64的指针，ok为false时返回nil
func Float64Ptr(v float64, ok bool) *float64 {
	if !ok {
		return nil
	}
	return &v
}

// Truncate 按字符截断字符串
func Truncate(s string, maxRunes int) string {
	s = strings.TrimSpace(s)
	runes := []rune(s)
	if maxRunes <= 0 || len(runes) <= maxRunes {
		return s
	}
	return string(runes[:maxRunes])
}
