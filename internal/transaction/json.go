package transaction

import "encoding/json"

// MarshalToJSON 用于命令行的 --json 输出
func (t Transaction) MarshalToJSON() (res []byte, err error) {
	return json.MarshalIndent(t, "", "  ")
}
