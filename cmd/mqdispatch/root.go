package main

import (
	"errors"
	"os"

	"github.com/wgdzlh/mqdispatch"
	"github.com/wgdzlh/mqdispatch/log"

	"github.com/spf13/cobra"
)

const connEnv = "MQDISPATCH_CONNECTION"

var (
	cfgPath string
	connStr string

	rootCmd = &cobra.Command{
		Use:          "mqdispatch",
		Short:        "Send commands to a message broker through a serializing dispatcher",
		SilenceUsage: true,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "yaml or json config file")
	rootCmd.PersistentFlags().StringVar(&connStr, "conn", "", "connection string, e.g. host=localhost;timeout=5 (env "+connEnv+")")
}

func loadConfig() (cfg *mqdispatch.Config, err error) {
	switch {
	case cfgPath != "":
		cfg, err = mqdispatch.LoadConfig(cfgPath)
	case connStr != "":
		cfg, err = mqdispatch.ParseConnectionString(connStr)
	case os.Getenv(connEnv) != "":
		cfg, err = mqdispatch.ParseConnectionString(os.Getenv(connEnv))
	default:
		err = errors.New("one of --config, --conn or " + connEnv + " is required")
	}
	if err != nil {
		return
	}
	log.InitLog(log.Level(cfg.LogLevel), log.Format(cfg.LogFormat))
	return
}
