package gpu

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusString(t *testing.T) {
	assert.Equal(t, "ok", StatusOK.String())
	assert.Equal(t, "suboptimal", StatusSuboptimal.String())
	assert.Equal(t, "out-of-date", StatusOutOfDate.String())
	assert.Equal(t, "unknown", Status(42).String())
}

func TestQueueFamiliesShared(t *testing.T) {
	assert.True(t, QueueFamilies{Graphics: 0, Present: 0}.Shared())
	assert.False(t, QueueFamilies{Graphics: 0, Present: 2}.Shared())
}
