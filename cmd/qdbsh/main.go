package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	qdb "quasardb.net/database/qdbgo"
)

var version = "0.1.0"

// app holds what every subcommand shares once flags are parsed.
type app struct {
	configFile string
	clusterURI string
	logLevel   string

	cfg qdb.Config
	log *zap.Logger
}

func main() {
	a := &app{}
	root := &cobra.Command{
		Use:           "qdbsh",
		Short:         "qdbsh - command line client for quasardb clusters",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.log != nil {
				_ = a.log.Sync()
			}
		},
	}
	root.PersistentFlags().StringVarP(&a.configFile, "config", "c", "", "YAML configuration file")
	root.PersistentFlags().StringVar(&a.clusterURI, "cluster", "", "cluster URI, overrides the configuration")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level, overrides the configuration")

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("qdbsh v%s\n", version)
			fmt.Printf("Go version: %s\n", runtime.Version())
			fmt.Printf("OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
			if v, err := qdb.Version(); err == nil {
				b, _ := qdb.Build()
				fmt.Printf("qdb_api: %s (%s)\n", v, b)
			} else {
				fmt.Printf("qdb_api: %v\n", err)
			}
		},
	})
	root.AddCommand(a.queryCommand())
	root.AddCommand(a.tsCommand())
	root.AddCommand(a.nodeCommand())
	root.AddCommand(a.stressCommand())

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func (a *app) setup() error {
	cfg, err := qdb.LoadConfig(a.configFile)
	if err != nil {
		return err
	}
	if a.clusterURI != "" {
		cfg.ClusterURI = a.clusterURI
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	log, err := qdb.NewLogger(cfg.Log)
	if err != nil {
		return err
	}
	qdb.SetLogger(log)
	a.cfg, a.log = cfg, log
	return nil
}

// open connects with the loaded configuration and forwards native logs.
func (a *app) open() (*qdb.Handle, error) {
	opts, err := a.cfg.Options()
	if err != nil {
		return nil, err
	}
	opts = append(opts, qdb.WithLogger(a.log))
	h, err := qdb.Open(a.cfg.ClusterURI, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", a.cfg.ClusterURI, err)
	}
	if err := qdb.EnableNativeLog(); err != nil {
		a.log.Warn("native log forwarding unavailable", zap.Error(err))
	}
	return h, nil
}

func (a *app) pushMode() qdb.PushMode {
	// validated by LoadConfig
	m, _ := qdb.ParsePushMode(a.cfg.Batch.PushMode)
	return m
}
