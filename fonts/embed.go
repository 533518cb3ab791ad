package fonts

import (
	"fmt"
	"strings"

	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
)

// 内置字体名称。
const (
	Bold    = "go-bold"
	Regular = "go-regular"
)

var builtin = map[string][]byte{
	Bold:    gobold.TTF,
	Regular: goregular.TTF,
}

// Load 返回内置字体的字节数据，name 可写为 "embed:go-bold" 或直接 "go-bold"。
func Load(name string) ([]byte, error) {
	clean := strings.TrimPrefix(strings.TrimSpace(name), "embed:")
	data, ok := builtin[clean]
	if !ok {
		return nil, fmt.Errorf("读取内置字体 %s 失败: 未知字体", clean)
	}
	return data, nil
}

// Names 返回全部内置字体名称。
func Names() []string { return []string{Bold, Regular} }
