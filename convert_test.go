package main

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/paulmach/orb/maptile"
)

func TestConverterArgs(t *testing.T) {
	got := converterArgs([]string{"a/a.shp", "b/b_area.shp"}, MinFeatures, MaxFeatures, "tiny_planet_2")
	want := []string{"-o", "tiny_planet_2", "--min", "1", "--max", "5000000", "a/a.shp", "b/b_area.shp"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("converterArgs mismatch (-want +got):\n%s", diff)
	}
}

func TestGeneratorArgs(t *testing.T) {
	job := TileJob{
		BoundFiles: []string{"bound_info_4"},
		CacheDir:   "cache",
		Refresh:    -1,
		OutDir:     "tiles",
		Overwrite:  true,
		Levels:     []maptile.Zoom{4},
	}
	want := []string{"-c", "cache", "-r", "-1", "-o", "tiles", "--overwrite", "-z", "4", "bound_info_4"}
	if diff := cmp.Diff(want, generatorArgs(job)); diff != "" {
		t.Errorf("generatorArgs mismatch (-want +got):\n%s", diff)
	}

	job.Overwrite = false
	job.Levels = []maptile.Zoom{1, 2}
	want = []string{"-c", "cache", "-r", "-1", "-o", "tiles", "-z", "1,2", "bound_info_4"}
	if diff := cmp.Diff(want, generatorArgs(job)); diff != "" {
		t.Errorf("generatorArgs mismatch (-want +got):\n%s", diff)
	}
}

func TestCommandNotConfigured(t *testing.T) {
	var c ExecConverter
	if err := c.Convert(context.Background(), nil, 1, 2, "x"); err == nil {
		t.Errorf("Convert with empty command succeeded")
	}
	g := ExecTileGenerator{Command{Name: "netiler-no-such-tool"}}
	if err := g.Generate(context.Background(), TileJob{}); err == nil {
		t.Errorf("Generate with missing tool succeeded")
	}
}
