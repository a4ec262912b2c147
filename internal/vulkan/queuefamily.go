package vulkan

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/presenter/internal/gpu"
)

var (
	ErrNoGraphicsQueue = errors.New("no queue family supports graphics")
	ErrNoPresentQueue  = errors.New("no queue family can present to the surface")
)

// QueueFamilyIndices holds the families discovered on a physical device.
// A nil field was not found.
type QueueFamilyIndices struct {
	GraphicsFamily *int
	PresentFamily  *int
}

func (i QueueFamilyIndices) IsComplete() bool {
	return i.GraphicsFamily != nil && i.PresentFamily != nil
}

// Resolve turns the discovered indices into a concrete pair, failing if
// either family is missing.
func (i QueueFamilyIndices) Resolve() (gpu.QueueFamilies, error) {
	if i.GraphicsFamily == nil {
		return gpu.QueueFamilies{}, ErrNoGraphicsQueue
	}
	if i.PresentFamily == nil {
		return gpu.QueueFamilies{}, ErrNoPresentQueue
	}
	return gpu.QueueFamilies{Graphics: *i.GraphicsFamily, Present: *i.PresentFamily}, nil
}

type familySupport struct {
	graphics bool
	present  bool
}

// findQueueFamilies prefers one family that does both graphics and present,
// which avoids any ownership transfer. Otherwise it takes the first family of
// each kind.
func findQueueFamilies(families []familySupport) QueueFamilyIndices {
	var indices QueueFamilyIndices
	for idx, family := range families {
		if family.graphics && family.present {
			return QueueFamilyIndices{GraphicsFamily: intPtr(idx), PresentFamily: intPtr(idx)}
		}
		if family.graphics && indices.GraphicsFamily == nil {
			indices.GraphicsFamily = intPtr(idx)
		}
		if family.present && indices.PresentFamily == nil {
			indices.PresentFamily = intPtr(idx)
		}
	}
	return indices
}

func intPtr(v int) *int {
	return &v
}
