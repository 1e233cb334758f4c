package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/pkg/errors"
)

func main() {
	// 初始化控制台
	opts, err := ParseOptions(os.Args[1:], os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		os.Exit(0)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if opts.Help {
		os.Exit(0)
	}
	// 开始安全退出任务
	exit := NewSafeExit()
	go exit.ListenSignal()
	// 初始化配置
	conf, err := LoadConf(opts)
	if err != nil {
		log.Fatal(err)
	}
	// 初始化日志
	if err := InitLog(conf, opts.LogLevel); err != nil {
		log.Fatal(err)
	}
	// 开始任务
	if err := RunTask(context.Background(), conf, exit); err != nil {
		log.Fatal(err)
	}
}
