package search

import "time"

type Config struct {
	// IndexPath 为空时使用内存索引
	IndexPath    string
	QueryTimeout time.Duration
	BatchSize    int
}

// Doc 待索引文档，Type 对应 mapping 中的文档类型
type Doc struct {
	ID     string
	Type   string
	Fields map[string]any
}

type Request struct {
	Keyword string
	Types   []string
	From    int
	Size    int
}

type Hit struct {
	ID        string              `json:"id"`
	Type      string              `json:"type"`
	Score     float64             `json:"score"`
	Fields    map[string]any      `json:"fields"`
	Fragments map[string][]string `json:"fragments,omitempty"`
}

type Result struct {
	Total uint64        `json:"total"`
	Took  time.Duration `json:"took"`
	Hits  []Hit         `json:"hits"`
}
