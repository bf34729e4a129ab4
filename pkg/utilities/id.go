package utilities

import (
	"os"
	"strconv"
	"sync"

	"github.com/bwmarrin/snowflake"
	"github.com/segmentio/ksuid"
)

var (
	nodeOnce sync.Once
	node     *snowflake.Node
)

// NewKSUID generates a new globally unique KSUID string.
func NewKSUID() string {
	return ksuid.New().String()
}

// NewRequestID returns a snowflake ID from the process node (SNOWFLAKE_NODE,
// default 1). If the node cannot be created it falls back to a KSUID.
func NewRequestID() string {
	nodeOnce.Do(func() {
		id := int64(1)
		if v, err := strconv.ParseInt(os.Getenv("SNOWFLAKE_NODE"), 10, 64); err == nil {
			id = v
		}
		node = newNode(id)
	})
	return idFrom(node)
}

// newNode returns nil when nodeID is outside the 10-bit snowflake range.
func newNode(nodeID int64) *snowflake.Node {
	n, err := snowflake.NewNode(nodeID)
	if err != nil {
		return nil
	}
	return n
}

func idFrom(n *snowflake.Node) string {
	if n == nil {
		return NewKSUID()
	}
	return n.Generate().String()
}
