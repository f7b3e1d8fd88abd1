package cache

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Key 是查询缓存的结构化标识，例如 ("posts", "list", 2)。
// 相等性按结构比较：整数统一按 int64 编码，map 按键排序编码。
type Key []any

// NewKey 构造 Key。
func NewKey(parts ...any) Key {
	return Key(parts)
}

// Append 返回在 k 之后追加 parts 的新 Key，不修改 k。
func (k Key) Append(parts ...any) Key {
	out := make(Key, 0, len(k)+len(parts))
	out = append(out, k...)
	return append(out, parts...)
}

// Hash 返回 Key 的规范编码，可直接作为 map 键。
func (k Key) Hash() string {
	return "[" + strings.Join(k.parts(), ",") + "]"
}

// String implements fmt.Stringer.
func (k Key) String() string {
	return k.Hash()
}

// Equal 按结构比较两个 Key。
func (k Key) Equal(other Key) bool {
	return k.Hash() == other.Hash()
}

// HasPrefix 判断 prefix 的元素是否是 k 的前导子序列；空 prefix 匹配全部。
func (k Key) HasPrefix(prefix Key) bool {
	if len(prefix) > len(k) {
		return false
	}
	for i := range prefix {
		if encodePart(prefix[i]) != encodePart(k[i]) {
			return false
		}
	}
	return true
}

// Resource 返回 Key 的第一个字符串元素，用于按资源统计与策略匹配。
func (k Key) Resource() string {
	if len(k) == 0 {
		return ""
	}
	if s, ok := k[0].(string); ok {
		return s
	}
	return ""
}

func (k Key) parts() []string {
	out := make([]string, len(k))
	for i, part := range k {
		out[i] = encodePart(part)
	}
	return out
}

// encodePart 对单个元素做规范化编码；无法编码的元素属于调用方编程错误。
func encodePart(part any) string {
	var normalized any
	switch v := part.(type) {
	case int:
		normalized = int64(v)
	case int8:
		normalized = int64(v)
	case int16:
		normalized = int64(v)
	case int32:
		normalized = int64(v)
	case uint:
		normalized = int64(v)
	case uint8:
		normalized = int64(v)
	case uint16:
		normalized = int64(v)
	case uint32:
		normalized = int64(v)
	case uint64:
		normalized = int64(v)
	case float32:
		normalized = float64(v)
	default:
		normalized = v
	}
	encoded, err := json.Marshal(normalized)
	if err != nil {
		panic(fmt.Sprintf("cache: key element %v (%T) is not encodable: %v", part, part, err))
	}
	return string(encoded)
}
