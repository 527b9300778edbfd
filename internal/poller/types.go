// internal/poller/types.go
package poller

import (
	"time"

	"github.com/googlehim/thingsboard-gateway/internal/converter"
)

// ReadBlock describes one Modbus read geometry.
// Geometry only: no semantics.
type ReadBlock struct {
	FC       uint8
	Address  uint16
	Quantity uint16
}

// TagRead binds a tag to its schema and read geometry.
type TagRead struct {
	Tag    string
	Schema converter.TagSchema
	Block  ReadBlock
}

// GroupReads is one ordered group of tag reads.
type GroupReads struct {
	Group converter.Group
	Tags  []TagRead
}

// PollResult is a snapshot produced by one poll cycle.
type PollResult struct {
	UnitID string
	At     time.Time

	// Set holds one response per polled tag, failed reads included.
	Set converter.ResponseSet

	Err error // non-nil means no tag could be read
}
