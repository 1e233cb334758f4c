package main

import (
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
	"github.com/pkg/errors"
)

// ZoomMax 最大级别
const ZoomMax = 20

// WorldBound 全球范围
var WorldBound = orb.Bound{Min: orb.Point{-180, -86}, Max: orb.Point{180, 86}}

// Converter thresholds passed for every level.
const (
	MinFeatures = 1
	MaxFeatures = 5000000
)

// Level 级别&数据集
type Level struct {
	Zoom       maptile.Zoom
	Datasets   []string
	Shapefiles []string
}

// PlanetName is the converter output basename for a level.
func (l Level) PlanetName() string {
	return fmt.Sprintf("tiny_planet_%d", l.Zoom)
}

// BoundInfoName is the descriptor file name for a level.
func (l Level) BoundInfoName() string {
	return fmt.Sprintf("bound_info_%d", l.Zoom)
}

// BoundInfoLine is the descriptor line read by the tile generator.
func (l Level) BoundInfoLine(b orb.Bound) string {
	return fmt.Sprintf("%s.1.osm;Level;%.1f;%.1f;%.1f;%.1f",
		l.PlanetName(), b.Min.X(), b.Min.Y(), b.Max.X(), b.Max.Y())
}

// WriteBoundInfo writes the level's descriptor file into dir and returns its path.
func WriteBoundInfo(dir string, l Level, b orb.Bound) (string, error) {
	path := filepath.Join(dir, l.BoundInfoName())
	if err := os.WriteFile(path, []byte(l.BoundInfoLine(b)+"\n"), 0644); err != nil {
		return "", errors.Wrapf(err, "write %s", path)
	}
	return path, nil
}

// maxLat sits just inside the web mercator latitude limit.
const maxLat = 85.0511

// TileCount is the number of tiles covering b at zoom z.
func TileCount(b orb.Bound, z maptile.Zoom) int64 {
	lo := clampTile(maptile.At(orb.Point{b.Min.X(), math.Min(b.Max.Y(), maxLat)}, z))
	hi := clampTile(maptile.At(orb.Point{b.Max.X(), math.Max(b.Min.Y(), -maxLat)}, z))
	return int64(hi.X-lo.X+1) * int64(hi.Y-lo.Y+1)
}

func clampTile(t maptile.Tile) maptile.Tile {
	last := uint32(1)<<uint32(t.Z) - 1
	if t.X > last {
		t.X = last
	}
	if t.Y > last {
		t.Y = last
	}
	return t
}
