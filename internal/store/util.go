package store

import "encoding/json"

func marshalInt64Slice(v []int64) string {
	if v == nil {
		v = []int64{}
	}
	b, _ := json.Marshal(v)
	return string(b)
}

func unmarshalInt64Slice(s string) []int64 {
	var v []int64
	if s == "" {
		return nil
	}
	_ = json.Unmarshal([]byte(s), &v)
	return v
}
