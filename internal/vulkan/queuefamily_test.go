package vulkan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/presenter/internal/gpu"
)

func TestFindQueueFamilies(t *testing.T) {
	tests := []struct {
		name     string
		families []familySupport
		want     gpu.QueueFamilies
		wantErr  error
	}{
		{
			name:     "shared",
			families: []familySupport{{graphics: true, present: true}},
			want:     gpu.QueueFamilies{Graphics: 0, Present: 0},
		},
		{
			name:     "shared family preferred over earlier split ones",
			families: []familySupport{{graphics: true}, {present: true}, {graphics: true, present: true}},
			want:     gpu.QueueFamilies{Graphics: 2, Present: 2},
		},
		{
			name:     "split",
			families: []familySupport{{}, {graphics: true}, {present: true}, {present: true}},
			want:     gpu.QueueFamilies{Graphics: 1, Present: 2},
		},
		{
			name:     "no graphics",
			families: []familySupport{{present: true}},
			wantErr:  ErrNoGraphicsQueue,
		},
		{
			name:     "no present",
			families: []familySupport{{graphics: true}},
			wantErr:  ErrNoPresentQueue,
		},
		{
			name:    "empty",
			wantErr: ErrNoGraphicsQueue,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			indices := findQueueFamilies(tt.families)
			families, err := indices.Resolve()
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.False(t, indices.IsComplete())
				return
			}
			require.NoError(t, err)
			assert.True(t, indices.IsComplete())
			assert.Equal(t, tt.want, families)
		})
	}
}
