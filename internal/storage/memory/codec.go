package memory

import (
	"encoding/json"
	"fmt"

	"mailbridge/backend/internal/domain"
)

// 与 Redis 实现保持同一序列化格式，保证两种存储可互换。

func marshalThread(thread *domain.Thread) (string, error) {
	data, err := json.Marshal(thread)
	if err != nil {
		return "", fmt.Errorf("marshal thread: %w", err)
	}
	return string(data), nil
}

func unmarshalThread(data string) (*domain.Thread, error) {
	var thread domain.Thread
	if err := json.Unmarshal([]byte(data), &thread); err != nil {
		return nil, fmt.Errorf("unmarshal thread: %w", err)
	}
	return &thread, nil
}
