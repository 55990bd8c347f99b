package scan

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Source 是一个按序号命名的输入文件：<dir>/<prefix>-<index>.<ext>。
type Source struct {
	Index   int
	AbsPath string
	RelPath string
	Size    int64
	ModUnix int64
}

// NotRegularError 表示序号对应的路径存在，但不是普通文件（例如目录）。
type NotRegularError struct {
	Path string
	Mode fs.FileMode
}

func (e *NotRegularError) Error() string {
	return fmt.Sprintf("输入路径不是普通文件：%q（%s）", e.Path, e.Mode.Type())
}

// Name 返回序号 i 对应的文件名。ext 可以带或不带前导 '.'；为空时不加扩展名。
func Name(prefix, ext string, i int) string {
	ext = strings.TrimPrefix(strings.TrimSpace(ext), ".")
	if ext == "" {
		return fmt.Sprintf("%s-%d", prefix, i)
	}
	return fmt.Sprintf("%s-%d.%s", prefix, i, ext)
}

// Pattern 返回用于展示的文件名模式，例如 "output-{i}.txt"。
func Pattern(prefix, ext string) string {
	ext = strings.TrimPrefix(strings.TrimSpace(ext), ".")
	if ext == "" {
		return prefix + "-{i}"
	}
	return prefix + "-{i}." + ext
}

// IndexedSources 从序号 0 开始依次 stat <dir>/<prefix>-<i>.<ext>，直到第一个不存在的序号。
//
// 规则：
// - 第一个缺失的序号是正常终止（不是错误），之后的序号即使存在也不再考虑
// - limit>0 时最多返回 limit 个
// - 其他 stat 错误（权限等）直接返回
//
// 注意：扫描阶段只做 stat，不读文件内容。
func IndexedSources(dir, prefix, ext string, limit int) ([]Source, error) {
	dir = filepath.Clean(dir)
	if strings.TrimSpace(prefix) == "" {
		return nil, errors.New("prefix 不能为空")
	}

	out := make([]Source, 0, 64)
	for i := 0; limit <= 0 || i < limit; i++ {
		name := Name(prefix, ext, i)
		path := filepath.Join(dir, name)

		fi, err := os.Stat(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				break
			}
			return nil, err
		}
		if !fi.Mode().IsRegular() {
			return nil, &NotRegularError{Path: path, Mode: fi.Mode()}
		}

		out = append(out, Source{
			Index:   i,
			AbsPath: path,
			RelPath: name,
			Size:    fi.Size(),
			ModUnix: fi.ModTime().Unix(),
		})
	}
	return out, nil
}
