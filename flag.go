package main

import (
	"flag"
	"fmt"
	"io"

	"github.com/pkg/errors"
)

// Options 命令行参数
type Options struct {
	Help      bool
	LevelFile string
	ConfPath  string
	LogLevel  string
	InDir     string
	OutDir    string
	CacheDir  string
	Refresh   int
	Overwrite bool
	// set holds the canonical names of flags given on the command line.
	set map[string]bool
}

// IsSet reports whether the flag with canonical name was given.
func (o *Options) IsSet(name string) bool {
	return o.set[name]
}

// short flag -> canonical long name
var flagAliases = map[string]string{
	"i":  "in_dir",
	"o":  "out_dir",
	"c":  "cache",
	"r":  "refresh",
	"ow": "overwrite",
}

// ParseOptions parses args (without the program name). Flags may come
// before or after the level file.
func ParseOptions(args []string, output io.Writer) (*Options, error) {
	o := &Options{set: make(map[string]bool)}
	fs := flag.NewFlagSet("netiler", flag.ContinueOnError)
	fs.SetOutput(output)

	fs.BoolVar(&o.Help, "h", false, "this help")
	fs.StringVar(&o.ConfPath, "conf", "", "set settings `file` (toml)")
	fs.StringVar(&o.LogLevel, "l", "info", "set log level")
	for _, name := range []string{"i", "in_dir"} {
		fs.StringVar(&o.InDir, name, ".", "`directory` to read/process data from")
	}
	for _, name := range []string{"o", "out_dir"} {
		fs.StringVar(&o.OutDir, name, ".", "`directory` to write tiles to")
	}
	for _, name := range []string{"c", "cache"} {
		fs.StringVar(&o.CacheDir, name, ".", "`directory` to store intermediate files in")
	}
	for _, name := range []string{"r", "refresh"} {
		fs.IntVar(&o.Refresh, name, -1, "re-download cached OSM base file if it is older than `days` (-1: do not re-download)")
	}
	for _, name := range []string{"ow", "overwrite"} {
		fs.BoolVar(&o.Overwrite, name, false, "create tiles even if they exist already")
	}
	fs.Usage = func() { usage(fs) }

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		o.LevelFile = fs.Arg(0)
		if err := fs.Parse(fs.Args()[1:]); err != nil {
			return nil, err
		}
		if fs.NArg() > 0 {
			return nil, errors.Errorf("unexpected arguments: %v", fs.Args())
		}
	}
	fs.Visit(func(f *flag.Flag) {
		name := f.Name
		if long, ok := flagAliases[name]; ok {
			name = long
		}
		o.set[name] = true
	})

	if o.Help {
		fs.Usage()
		return o, nil
	}
	if o.LevelFile == "" {
		fs.Usage()
		return nil, errors.New("missing level file")
	}
	return o, nil
}

func usage(fs *flag.FlagSet) {
	fmt.Fprintf(fs.Output(), `netiler version: netiler/v0.1.0
Generates low level tiles using Natural Earth data
Usage: netiler [-h] [-conf file] [-l logLevel] [-i dir] [-o dir] [-c dir] [-r days] [-ow] levelfile
`)
	fs.PrintDefaults()
}
