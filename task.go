package main

import (
	"context"
	"path/filepath"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
	"github.com/pkg/errors"
	"github.com/teris-io/shortid"
)

// DatasetFetcher makes a dataset available under the input directory.
type DatasetFetcher interface {
	Ensure(ctx context.Context, name string) (bool, error)
}

// RunTask 加载级别文件并执行任务
func RunTask(ctx context.Context, conf *Conf, exit *SafeExit) error {
	start := time.Now()

	levels, err := LoadLevels(conf.Run.LevelFile, conf.Run.InDir)
	if err != nil {
		return err
	}
	dm, err := NewDataMap(conf.Source.Name, conf.Source.URL)
	if err != nil {
		return err
	}
	task := NewTask(conf, levels,
		NewFetcher(conf, dm, exit),
		ExecConverter{Command{Name: conf.Convert.Command, Args: conf.Convert.Args, Dir: conf.Run.WorkDir}},
		ExecTileGenerator{Command{Name: conf.Tiles.Command, Args: conf.Tiles.Args, Dir: conf.Run.WorkDir}},
	)
	if err := task.Run(ctx); err != nil {
		return errors.Wrapf(err, "task %s", task.ID)
	}

	log.Infof("%.3fs finished...", time.Since(start).Seconds())
	return nil
}

// Task 瓦片生成任务
type Task struct {
	ID          string
	Name        string
	Levels      Levels
	Bound       orb.Bound
	InDir       string
	WorkDir     string
	MinFeatures int
	MaxFeatures int
	// Job carries the tile generator settings shared by every level.
	Job       TileJob
	Fetcher   DatasetFetcher
	Converter ShapeConverter
	Tiler     TileGenerator
}

// NewTask 创建任务
func NewTask(conf *Conf, levels Levels, f DatasetFetcher, c ShapeConverter, g TileGenerator) *Task {
	id, _ := shortid.Generate()
	return &Task{
		ID:          id,
		Name:        conf.App.Title,
		Levels:      levels,
		Bound:       WorldBound,
		InDir:       conf.Run.InDir,
		WorkDir:     conf.Run.WorkDir,
		MinFeatures: conf.Convert.MinFeatures,
		MaxFeatures: conf.Convert.MaxFeatures,
		Job: TileJob{
			CacheDir:  conf.Run.CacheDir,
			Refresh:   conf.Run.Refresh,
			OutDir:    conf.Run.OutDir,
			Overwrite: conf.Run.Overwrite,
		},
		Fetcher:   f,
		Converter: c,
		Tiler:     g,
	}
}

// Run processes every level, lowest zoom first. The first error aborts the run.
func (task *Task) Run(ctx context.Context) error {
	if len(task.Levels) == 0 {
		log.Warnf("Task %s: level file lists no levels", task.ID)
		return nil
	}
	log.Infof("Task %s: %s starting, %d levels", task.ID, task.Name, len(task.Levels))
	for _, z := range task.Levels.Zooms() {
		if err := ctx.Err(); err != nil {
			return err
		}
		level := Level{Zoom: z, Datasets: task.Levels[z]}
		if err := task.runLevel(ctx, level); err != nil {
			return errors.Wrapf(err, "level %d", z)
		}
	}
	return nil
}

func (task *Task) runLevel(ctx context.Context, level Level) error {
	log.Infof("Task %s level %d starting, zoom: %d, tiles: %d", task.ID, level.Zoom, level.Zoom, TileCount(task.Bound, level.Zoom))

	for _, name := range level.Datasets {
		log.Infof("Checking - %s", name)
		if _, err := task.Fetcher.Ensure(ctx, name); err != nil {
			return errors.Wrapf(err, "dataset %s", name)
		}
		// the converter runs in WorkDir
		shp, err := filepath.Abs(ShapefilePath(task.InDir, name))
		if err != nil {
			return errors.Wrapf(err, "resolve %s", name)
		}
		level.Shapefiles = append(level.Shapefiles, shp)
	}
	log.Infof("Level has following SHP datasets: %v", level.Shapefiles)

	if err := task.Converter.Convert(ctx, level.Shapefiles, task.MinFeatures, task.MaxFeatures, level.PlanetName()); err != nil {
		return errors.Wrap(err, "convert shapefiles")
	}
	log.Infof("Tiny planetosm for Level = %d complete.", level.Zoom)

	if _, err := WriteBoundInfo(task.WorkDir, level, task.Bound); err != nil {
		return err
	}

	job := task.Job
	job.BoundFiles = []string{level.BoundInfoName()}
	job.Levels = []maptile.Zoom{level.Zoom}
	if err := task.Tiler.Generate(ctx, job); err != nil {
		return errors.Wrap(err, "generate tiles")
	}
	log.Infof("Task %s level %d finished ~", task.ID, level.Zoom)
	return nil
}
