package main

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// Conf is built once at startup and only read afterwards.
type Conf struct {
	App struct {
		Version string `mapstructure:"version"`
		Title   string `mapstructure:"title"`
	} `mapstructure:"app"`
	Output struct {
		LogDir         string `mapstructure:"logDir"`
		OutputTerminal bool   `mapstructure:"outputTerminal"`
	} `mapstructure:"output"`
	Source struct {
		Name      string        `mapstructure:"name"`
		URL       string        `mapstructure:"url"`
		ChunkSize int           `mapstructure:"chunkSize"`
		Timeout   time.Duration `mapstructure:"timeout"`
	} `mapstructure:"source"`
	Convert struct {
		Command     string   `mapstructure:"command"`
		Args        []string `mapstructure:"args"`
		MinFeatures int      `mapstructure:"minFeatures"`
		MaxFeatures int      `mapstructure:"maxFeatures"`
	} `mapstructure:"convert"`
	Tiles struct {
		Command string   `mapstructure:"command"`
		Args    []string `mapstructure:"args"`
	} `mapstructure:"tiles"`
	Run struct {
		LevelFile string `mapstructure:"levelFile"`
		InDir     string `mapstructure:"inDir"`
		OutDir    string `mapstructure:"outDir"`
		CacheDir  string `mapstructure:"cacheDir"`
		WorkDir   string `mapstructure:"workDir"`
		Refresh   int    `mapstructure:"refresh"`
		Overwrite bool   `mapstructure:"overwrite"`
	} `mapstructure:"run"`
}

// flag name -> settings key
var runKeys = map[string]string{
	"in_dir":    "run.inDir",
	"out_dir":   "run.outDir",
	"cache":     "run.cacheDir",
	"refresh":   "run.refresh",
	"overwrite": "run.overwrite",
}

// LoadConf reads the optional toml settings file, the NETILER_* environment
// and the command line, in increasing priority.
func LoadConf(opts *Options) (*Conf, error) {
	v := viper.New()
	v.SetConfigType("toml")

	// 设置默认值
	v.SetDefault("app.version", "v 0.1.0")
	v.SetDefault("app.title", "Natural Earth Tiler")
	v.SetDefault("output.outputTerminal", true)
	v.SetDefault("source.name", "naturalearth")
	v.SetDefault("source.url", DefaultURL)
	v.SetDefault("source.chunkSize", DefaultChunkSize)
	v.SetDefault("source.timeout", 0)
	v.SetDefault("convert.command", "python3")
	v.SetDefault("convert.args", []string{"../shp2osm/polyshp2osm.py"})
	v.SetDefault("convert.minFeatures", MinFeatures)
	v.SetDefault("convert.maxFeatures", MaxFeatures)
	v.SetDefault("tiles.command", "python3")
	v.SetDefault("tiles.args", []string{"../vectortilecreator/vectortilecreator.py"})
	v.SetDefault("run.inDir", ".")
	v.SetDefault("run.outDir", ".")
	v.SetDefault("run.cacheDir", ".")
	v.SetDefault("run.workDir", ".")
	v.SetDefault("run.refresh", -1)
	v.SetDefault("run.overwrite", false)

	if opts.ConfPath != "" {
		if _, err := os.Stat(opts.ConfPath); err != nil {
			return nil, errors.Wrapf(err, "config file(%s)", opts.ConfPath)
		}
		v.SetConfigFile(opts.ConfPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "read config file(%s)", v.ConfigFileUsed())
		}
	}
	v.SetEnvPrefix("netiler")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	flagValues := map[string]interface{}{
		"in_dir":    opts.InDir,
		"out_dir":   opts.OutDir,
		"cache":     opts.CacheDir,
		"refresh":   opts.Refresh,
		"overwrite": opts.Overwrite,
	}
	for name, key := range runKeys {
		if opts.IsSet(name) {
			v.Set(key, flagValues[name])
		}
	}
	v.Set("run.levelFile", opts.LevelFile)

	var conf Conf
	if err := v.Unmarshal(&conf); err != nil {
		return nil, errors.Wrap(err, "配置文件解析失败")
	}
	inDir, err := filepath.Abs(conf.Run.InDir)
	if err != nil {
		return nil, errors.Wrapf(err, "resolve in dir %s", conf.Run.InDir)
	}
	conf.Run.InDir = inDir
	if conf.Source.ChunkSize <= 0 {
		conf.Source.ChunkSize = DefaultChunkSize
	}
	if conf.Run.Refresh < -1 {
		return nil, errors.Errorf("refresh must be -1 or a number of days, got %d", conf.Run.Refresh)
	}
	return &conf, nil
}
