package layout

import (
	"encoding/json"
	"os"
)

// MarshalJSON 以条目数组形式输出索引。
func (x *Index) MarshalJSON() ([]byte, error) {
	if x == nil {
		return []byte("[]"), nil
	}
	entries := x.entries
	if entries == nil {
		entries = []IndexEntry{}
	}
	return json.Marshal(entries)
}

// WriteDebugJSON 将布局结果输出为 JSON，便于调试或可视化。
func WriteDebugJSON(res *Result, path string) error {
	if res == nil {
		return nil
	}
	data, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
