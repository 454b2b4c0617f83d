package main

import (
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/tangzhangming/solastan/internal/analyzer"
	"github.com/tangzhangming/solastan/internal/cache"
	"github.com/tangzhangming/solastan/internal/config"
	"github.com/tangzhangming/solastan/internal/report"
)

const (
	Version = "0.1.0"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(0)
	}

	switch os.Args[1] {
	case "selfcheck":
		cmdSelfcheck(os.Args[2:])
	case "version", "-v", "--version":
		fmt.Printf("solastan %s\n", Version)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Solastan - static analyzer for the Sola language")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  solastan selfcheck [-verbose]   run the built-in sample program through the full pipeline")
	fmt.Println("  solastan version                print version")
	fmt.Println("  solastan help                   print this help")
	fmt.Println()
	fmt.Println("Analysis of Sola source requires the Sola frontend, which feeds")
	fmt.Println("lowered declarations into this analyzer as a library.")
}

// cmdSelfcheck 用内置示例程序跑完整条流水线，验证安装
func cmdSelfcheck(args []string) {
	fs := flag.NewFlagSet("selfcheck", flag.ExitOnError)
	verbose := fs.Bool("verbose", false, "enable debug logging")
	fs.Parse(args)

	cfg := config.Default()
	if path := config.FindConfigFile("."); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "solastan: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	logger := zap.NewNop()
	if *verbose || cfg.Analysis.Verbose {
		dev, err := zap.NewDevelopment()
		if err == nil {
			logger = dev
		}
	}
	defer logger.Sync()

	cb, fns := sampleProgram()

	if cfg.Taint.Table != "" {
		table, err := config.LoadTaintTable(cfg.Taint.Table)
		if err != nil {
			fmt.Fprintf(os.Stderr, "solastan: %v\n", err)
			os.Exit(1)
		}
		table.Register(cb)
	}

	// 示例程序没有真实源文件，用其文本形式作为缓存键，
	// 第二次 selfcheck 直接命中
	var cm *cache.Manager
	sampleKey := []byte(sampleFingerprint(fns))
	if cfg.Cache.Enabled {
		cm = cache.NewManager(cfg.Cache.Dir)
		if issues, ok := cm.Lookup("selfcheck.sola", sampleKey); ok {
			logger.Debug("selfcheck served from cache")
			if err := report.WriteJSON(os.Stdout, issues, report.Stats{Issues: len(issues)}); err != nil {
				fmt.Fprintf(os.Stderr, "solastan: %v\n", err)
				os.Exit(1)
			}
			return
		}
	}

	a := analyzer.New(cb, analyzer.Options{
		Workers:      cfg.Analysis.Workers,
		LoopCap:      cfg.Analysis.LoopCap,
		UnusedDepth:  cfg.Analysis.UnusedDepth,
		TaintEnabled: cfg.Taint.Enabled,
		Logger:       logger,
	})
	result, err := a.Run(fns)
	if err != nil {
		fmt.Fprintf(os.Stderr, "solastan: %v\n", err)
	}

	if cm != nil {
		cm.Store("selfcheck.sola", sampleKey, result.Issues)
		if err := cm.Save(); err != nil {
			logger.Warn("failed to save cache index", zap.Error(err))
		}
	}

	if err := report.WriteJSON(os.Stdout, result.Issues, result.Stats); err != nil {
		fmt.Fprintf(os.Stderr, "solastan: %v\n", err)
		os.Exit(1)
	}
}
