package main

import (
	"context"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/paulmach/orb/maptile"
	"github.com/pkg/errors"
)

// ShapeConverter turns shapefiles into a region-bounded OSM file set named
// after basename, split every maxFeatures features.
type ShapeConverter interface {
	Convert(ctx context.Context, shapefiles []string, minFeatures, maxFeatures int, basename string) error
}

// TileJob 瓦片生成任务
type TileJob struct {
	BoundFiles []string
	CacheDir   string
	// Refresh is the age in days after which cached files are rebuilt; -1 never.
	Refresh   int
	OutDir    string
	Overwrite bool
	Levels    []maptile.Zoom
}

// TileGenerator builds vector tiles from bound info files.
type TileGenerator interface {
	Generate(ctx context.Context, job TileJob) error
}

// Command is an external program run in Dir.
type Command struct {
	Name string
	Args []string
	Dir  string
}

func (c Command) run(ctx context.Context, extra []string) error {
	if c.Name == "" {
		return errors.New("command not configured")
	}
	if _, err := exec.LookPath(c.Name); err != nil {
		return errors.Wrapf(err, "%s not found in PATH", c.Name)
	}
	args := append(append([]string{}, c.Args...), extra...)
	log.Debugf("Executing: %s %s", c.Name, strings.Join(args, " "))

	cmd := exec.CommandContext(ctx, c.Name, args...)
	cmd.Dir = c.Dir
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	start := time.Now()
	if err := cmd.Run(); err != nil {
		return errors.Wrapf(err, "%s failed after %v", c.Name, time.Since(start))
	}
	log.Debugf("%s finished in %v", c.Name, time.Since(start))
	return nil
}

// ExecConverter runs polyshp2osm.
type ExecConverter struct {
	Command
}

func (c ExecConverter) Convert(ctx context.Context, shapefiles []string, minFeatures, maxFeatures int, basename string) error {
	return c.run(ctx, converterArgs(shapefiles, minFeatures, maxFeatures, basename))
}

func converterArgs(shapefiles []string, minFeatures, maxFeatures int, basename string) []string {
	args := []string{
		"-o", basename,
		"--min", strconv.Itoa(minFeatures),
		"--max", strconv.Itoa(maxFeatures),
	}
	return append(args, shapefiles...)
}

// ExecTileGenerator runs vectortilecreator.
type ExecTileGenerator struct {
	Command
}

func (g ExecTileGenerator) Generate(ctx context.Context, job TileJob) error {
	return g.run(ctx, generatorArgs(job))
}

func generatorArgs(job TileJob) []string {
	zooms := make([]string, len(job.Levels))
	for i, z := range job.Levels {
		zooms[i] = strconv.Itoa(int(z))
	}
	args := []string{
		"-c", job.CacheDir,
		"-r", strconv.Itoa(job.Refresh),
		"-o", job.OutDir,
	}
	if job.Overwrite {
		args = append(args, "--overwrite")
	}
	args = append(args, "-z", strings.Join(zooms, ","))
	return append(args, job.BoundFiles...)
}
