package main

import "path/filepath"

const parksDataset = "ne_10m_parks_and_protected_lands"

// shpExceptions ship their shapefile as <name>_shp.shp.
var shpExceptions = map[string]struct{}{
	"ne_50m_admin_1_states_provinces_lines": {},
}

// ShapefilePath returns where the extracted shapefile of name is expected.
// It does not check that the file exists.
func ShapefilePath(inDir, name string) string {
	file := name + ".shp"
	if name == parksDataset {
		file = name + "_area.shp"
	} else if _, ok := shpExceptions[name]; ok {
		file = name + "_shp.shp"
	}
	return filepath.Join(inDir, name, file)
}

// DatasetDir 数据集解压目录
func DatasetDir(inDir, name string) string {
	return filepath.Join(inDir, name)
}
