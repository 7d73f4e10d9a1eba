package store

import (
	"encoding/json"

	"sipcheck/internal/core/drink"
)

// Encode 將整份紀錄序列化為單一 JSON 陣列
func Encode(records []drink.Record) ([]byte, error) {
	if records == nil {
		records = []drink.Record{}
	}
	return json.Marshal(records)
}

// Decode 還原 Encode 的輸出；任何一筆紀錄無效即整份失敗
func Decode(data []byte) ([]drink.Record, error) {
	var records []drink.Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, err
	}
	if records == nil {
		records = []drink.Record{}
	}
	return records, nil
}
