package invoicing

import (
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
)

// NumberSource hands out unique payment numbers.
type NumberSource interface {
	NextPaymentNumber() string
}

// SnowflakeNumbers issues time-ordered payment numbers such as PAY-1791623741237452800.
// A node ID must be unique per running process.
type SnowflakeNumbers struct {
	node *snowflake.Node
}

// NewSnowflakeNumbers creates a generator for the given node (0-1023).
func NewSnowflakeNumbers(nodeID int64) (*SnowflakeNumbers, error) {
	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		return nil, fmt.Errorf("invoicing: payment number node: %w", err)
	}
	return &SnowflakeNumbers{node: node}, nil
}

// NextPaymentNumber implements NumberSource.
func (s *SnowflakeNumbers) NextPaymentNumber() string {
	return "PAY-" + s.node.Generate().String()
}

type uuidNumbers struct{}

func (uuidNumbers) NextPaymentNumber() string {
	return "PAY-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:12])
}
