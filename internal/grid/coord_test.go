package grid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCoord(t *testing.T) {
	tests := []struct {
		in      string
		want    Coord
		wantErr bool
	}{
		{in: "1,2", want: Coord{X: 1, Z: 2}},
		{in: "3, 4, 1", want: Coord{X: 3, Z: 4, Floor: 1}},
		{in: "-1,0", want: Coord{X: -1}},
		{in: "1", wantErr: true},
		{in: "1,2,3,4", wantErr: true},
		{in: "a,b", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseCoord(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseVec3(t *testing.T) {
	v, err := ParseVec3("1.5, 3,-2")
	require.NoError(t, err)
	assert.Equal(t, Vec3{X: 1.5, Y: 3, Z: -2}, v)

	_, err = ParseVec3("1,2")
	assert.Error(t, err)

	_, err = ParseVec3("1,x,2")
	assert.Error(t, err)
}
