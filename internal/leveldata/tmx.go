package leveldata

import (
	"fmt"
	"io/fs"
	"path"
	"strconv"
	"strings"

	"github.com/lafriks/go-tiled"
)

// TMX layer and object group names.
const (
	floorLayerPrefix = "floor-"
	solidLayerPrefix = "solid-"
	linksGroup       = "links"
)

// LoadTMX reads a Tiled map. Map width and height are the grid size; rows of the
// map are grid Z. Tile layers "floor-N" and "solid-N" mark walkable and blocked
// cells on floor N, and every object in the "links" group declares a link through
// int properties a_x, a_z, a_floor, b_x, b_z, b_floor.
// Map properties cell_size, floor_height, floors and name override the defaults.
func LoadTMX(fsys fs.FS, tmxPath string) (*Level, error) {
	m, err := tiled.LoadFile(tmxPath, tiled.WithFileSystem(fsys))
	if err != nil {
		return nil, fmt.Errorf("load TMX %s: %w", tmxPath, err)
	}

	lvl := &Level{Width: m.Width, Height: m.Height}
	if m.Properties != nil {
		lvl.Name = m.Properties.GetString("name")
		lvl.CellSize = m.Properties.GetFloat("cell_size")
		lvl.Floors = m.Properties.GetInt("floors")
		lvl.FloorHeight = m.Properties.GetFloat("floor_height")
	}
	if lvl.Name == "" {
		lvl.Name = stem(tmxPath)
	}
	if lvl.CellSize == 0 {
		lvl.CellSize = 1
	}
	if lvl.FloorHeight == 0 {
		lvl.FloorHeight = 1
	}

	maxFloor := -1
	for _, layer := range m.Layers {
		var (
			prefix string
			dst    *[]Area
		)
		switch {
		case strings.HasPrefix(layer.Name, floorLayerPrefix):
			prefix, dst = floorLayerPrefix, &lvl.FloorAreas
		case strings.HasPrefix(layer.Name, solidLayerPrefix):
			prefix, dst = solidLayerPrefix, &lvl.Solids
		default:
			continue
		}

		floor, err := strconv.Atoi(strings.TrimPrefix(layer.Name, prefix))
		if err != nil {
			return nil, fmt.Errorf("TMX %s layer %q: %w", tmxPath, layer.Name, ErrInvalidLevel)
		}
		maxFloor = max(maxFloor, floor)

		if len(layer.Tiles) < m.Width*m.Height {
			return nil, fmt.Errorf("TMX %s layer %q has %d tiles: %w", tmxPath, layer.Name, len(layer.Tiles), ErrInvalidLevel)
		}
		*dst = append(*dst, rowRuns(layer, m.Width, m.Height, floor)...)
	}
	if lvl.Floors == 0 {
		lvl.Floors = max(maxFloor+1, 1)
	}

	for _, og := range m.ObjectGroups {
		if og.Name != linksGroup {
			continue
		}
		for _, o := range og.Objects {
			if o.Properties == nil {
				return nil, fmt.Errorf("TMX %s link object %d without properties: %w", tmxPath, o.ID, ErrInvalidLevel)
			}
			lvl.Links = append(lvl.Links, LinkSpec{
				A: Cell{X: o.Properties.GetInt("a_x"), Z: o.Properties.GetInt("a_z"), Floor: o.Properties.GetInt("a_floor")},
				B: Cell{X: o.Properties.GetInt("b_x"), Z: o.Properties.GetInt("b_z"), Floor: o.Properties.GetInt("b_floor")},
			})
		}
	}

	if err := lvl.Validate(); err != nil {
		return nil, fmt.Errorf("TMX %s: %w", tmxPath, err)
	}
	return lvl, nil
}

// rowRuns merges horizontal runs of set tiles into areas one cell deep.
func rowRuns(layer *tiled.Layer, width, height, floor int) []Area {
	var areas []Area
	for z := range height {
		start := -1
		for x := 0; x <= width; x++ {
			set := x < width && !layer.Tiles[z*width+x].IsNil()
			switch {
			case set && start < 0:
				start = x
			case !set && start >= 0:
				areas = append(areas, Area{Floor: floor, X: start, Z: z, W: x - start, D: 1})
				start = -1
			}
		}
	}
	return areas
}

func stem(p string) string {
	base := path.Base(p)
	return strings.TrimSuffix(base, path.Ext(base))
}
