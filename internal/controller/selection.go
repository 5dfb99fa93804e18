package controller

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// FileCandidate 用户选择(或拖入)的文件，尚未校验
type FileCandidate struct {
	Name string
	Size int64
	Open func() (io.ReadCloser, error)
}

// CandidateFromPath 从本地文件构建候选文件
func CandidateFromPath(path string) (FileCandidate, error) {
	info, err := os.Stat(path)
	if err != nil {
		return FileCandidate{}, fmt.Errorf("读取文件信息失败: %w", err)
	}
	if info.IsDir() {
		return FileCandidate{}, fmt.Errorf("%s 是目录", path)
	}
	return FileCandidate{
		Name: filepath.Base(path),
		Size: info.Size(),
		Open: func() (io.ReadCloser, error) { return os.Open(path) },
	}, nil
}

// CandidateFromBytes 从内存数据构建候选文件
func CandidateFromBytes(name string, data []byte) FileCandidate {
	return FileCandidate{
		Name: name,
		Size: int64(len(data)),
		Open: func() (io.ReadCloser, error) { return io.NopCloser(bytes.NewReader(data)), nil },
	}
}

// Selection 当前选中的文件，至多一个
type Selection struct {
	Name      string
	Size      int64
	Extension string

	open func() (io.ReadCloser, error)
}

// fileExtension "Resume.PDF" -> "pdf"
func fileExtension(name string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
}
