package swapchain

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/presenter/internal/gpu"
)

// Owner is the queue family an image currently belongs to.
type Owner int

const (
	// OwnerGraphics is the state of a freshly created image: undefined
	// layout, first touched by the graphics family.
	OwnerGraphics Owner = iota
	// OwnerPresent images are in the present layout and owned by the present
	// family, or by the shared family when both are the same.
	OwnerPresent
)

func (o Owner) String() string {
	switch o {
	case OwnerGraphics:
		return "graphics"
	case OwnerPresent:
		return "present"
	}
	return "unknown"
}

// Ownership records, per image, whether the one-time ownership transfer has
// run. An image is transferred at most once in its lifetime.
type Ownership struct {
	families gpu.QueueFamilies
	owners   []Owner
}

func newOwnership(images int, families gpu.QueueFamilies) *Ownership {
	return &Ownership{
		families: families,
		owners:   make([]Owner, images),
	}
}

// transfer moves every image over to present in a single submission. It
// runs once per swapchain; a second attempt is an assertion failure.
func (o *Ownership) transfer(device gpu.Device, handle gpu.Swapchain) error {
	pending := make([]int, 0, len(o.owners))
	for i, owner := range o.owners {
		if owner != OwnerGraphics {
			return errors.AssertionFailedf("image %d already transferred to %s", i, owner)
		}
		pending = append(pending, i)
	}
	if len(pending) == 0 {
		return nil
	}

	if err := device.TransferOwnership(handle, pending, o.families); err != nil {
		return errors.Wrap(err, "transfer swapchain image ownership")
	}
	for _, i := range pending {
		o.owners[i] = OwnerPresent
	}
	return nil
}

func (o *Ownership) Owner(image int) Owner {
	return o.owners[image]
}

func (o *Ownership) Families() gpu.QueueFamilies {
	return o.families
}

func (o *Ownership) requirePresentable(image int) error {
	if o.owners[image] != OwnerPresent {
		return errors.AssertionFailedf("image %d is still owned by %s", image, o.owners[image])
	}
	return nil
}
