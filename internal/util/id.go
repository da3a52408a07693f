package util

import (
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
)

// IDGenerator hands out 64-bit snowflake ids. Zero is never produced, so
// it stays free for the void sentinel.
type IDGenerator struct {
	node *snowflake.Node
}

func NewIDGenerator(node int64) (*IDGenerator, error) {
	n, err := snowflake.NewNode(node)
	if err != nil {
		return nil, fmt.Errorf("snowflake node %d: %w", node, err)
	}
	return &IDGenerator{node: n}, nil
}

func (g *IDGenerator) Next() uint64 {
	return uint64(g.node.Generate().Int64())
}

// Now is the timestamp stored on every row.
func Now() int64 {
	return time.Now().UnixMilli()
}
