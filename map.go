package main

import (
	"strings"

	"github.com/jtacoma/uritemplates"
	"github.com/pkg/errors"
)

// DefaultURL Natural Earth 下载地址模板
const DefaultURL = "http://www.naturalearthdata.com/http//www.naturalearthdata.com/download/{scale}/{category}/{name}.zip"

// Natural Earth categories
const (
	Cultural = "cultural"
	Physical = "physical"
)

// culturalTokens mark a dataset as cultural when any name token matches.
var culturalTokens = map[string]struct{}{
	"admin":     {},
	"populated": {},
	"roads":     {},
	"railroads": {},
	"airports":  {},
	"ports":     {},
	"urban":     {},
	"parks":     {},
	"time":      {},
	"cultural":  {},
}

// DataMap 数据源
type DataMap struct {
	Name string
	tpl  *uritemplates.UriTemplate
}

// NewDataMap parses the archive URL template.
func NewDataMap(name, url string) (*DataMap, error) {
	if url == "" {
		url = DefaultURL
	}
	tpl, err := uritemplates.Parse(url)
	if err != nil {
		return nil, errors.Wrapf(err, "parse url template %q", url)
	}
	return &DataMap{Name: name, tpl: tpl}, nil
}

// Category classifies a dataset as cultural or physical.
func Category(name string) string {
	for _, tok := range strings.Split(name, "_") {
		if _, ok := culturalTokens[tok]; ok {
			return Cultural
		}
	}
	return Physical
}

// Scale returns the second name token, e.g. "10m" for ne_10m_roads.
func Scale(name string) string {
	toks := strings.Split(name, "_")
	if len(toks) < 2 {
		return ""
	}
	return toks[1]
}

// GetDatasetURL 获取数据集URL
func (m *DataMap) GetDatasetURL(name string) (string, error) {
	scale := Scale(name)
	if scale == "" {
		return "", errors.Errorf("dataset %q has no scale token", name)
	}
	return m.tpl.Expand(map[string]interface{}{
		"scale":    scale,
		"category": Category(name),
		"name":     name,
	})
}
