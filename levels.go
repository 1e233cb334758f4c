package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"github.com/paulmach/orb/maptile"
	"github.com/pkg/errors"
)

var (
	// ErrNoLevel is returned when a dataset line appears before any level marker.
	ErrNoLevel = errors.New("dataset listed before any level marker")
	// ErrBadLevel is returned for a level marker that is not an integer in [0, ZoomMax].
	ErrBadLevel = errors.New("malformed level marker")
)

// Levels 级别 -> 数据集列表
type Levels map[maptile.Zoom][]string

// Zooms returns the levels present, ascending.
func (l Levels) Zooms() []maptile.Zoom {
	zs := make([]maptile.Zoom, 0, len(l))
	for z := range l {
		zs = append(zs, z)
	}
	sort.Slice(zs, func(i, j int) bool { return zs[i] < zs[j] })
	return zs
}

// String renders the levels back into level file text.
func (l Levels) String() string {
	var b strings.Builder
	for _, z := range l.Zooms() {
		fmt.Fprintf(&b, "*%d\n", z)
		for _, name := range l[z] {
			b.WriteString(name)
			b.WriteByte('\n')
		}
	}
	return b.String()
}

// ParseLevels reads a level file.
//
//	# comment
//	*0
//	ne_110m_land
//	*1
//	ne_50m_land
//	ne_50m_rivers_lake_centerlines
//
// A repeated marker resets that level's list.
func ParseLevels(r io.Reader) (Levels, error) {
	levels := make(Levels)
	var (
		cur     maptile.Zoom
		started bool
		lineNo  int
	)
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		lineNo++
		line := strings.TrimRightFunc(sc.Text(), unicode.IsSpace)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if line[0] == '*' {
			z, err := strconv.ParseUint(strings.TrimSpace(line[1:]), 10, 32)
			if err != nil || z > ZoomMax {
				return nil, errors.Wrapf(ErrBadLevel, "line %d: %q", lineNo, line)
			}
			cur, started = maptile.Zoom(z), true
			levels[cur] = []string{}
			continue
		}
		if !started {
			return nil, errors.Wrapf(ErrNoLevel, "line %d: %q", lineNo, line)
		}
		levels[cur] = append(levels[cur], line)
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrap(err, "read level file")
	}
	return levels, nil
}

// LoadLevels parses the level file at path. A relative path is taken
// relative to inDir.
func LoadLevels(path, inDir string) (Levels, error) {
	if !filepath.IsAbs(path) {
		path = filepath.Join(inDir, path)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open level file")
	}
	defer f.Close()

	levels, err := ParseLevels(f)
	if err != nil {
		return nil, errors.Wrapf(err, "parse %s", path)
	}
	return levels, nil
}
