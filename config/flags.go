package config

import (
	"os"

	"github.com/spf13/pflag"
)

var CliArgs *CliConfig

type CliConfig struct {
	ConfigFile    string
	ListenAddress string
	Debug         bool
	Help          bool
	Version       bool
}

func ParseArgs() {
	if CliArgs != nil {
		panic("already defined")
	}
	// CommandLine exits on parse errors, so the error is always nil here.
	CliArgs, _ = parseArgs(pflag.CommandLine, os.Args[1:])
}

func parseArgs(fs *pflag.FlagSet, args []string) (*CliConfig, error) {
	cli := &CliConfig{}
	fs.StringVar(&cli.ConfigFile, "config", "", "Path to the config file")
	fs.StringVar(&cli.ListenAddress, "listen", "", "Address to listen on, overrides listen_address")
	fs.BoolVarP(&cli.Debug, "debug", "d", false, "Enable debug mode")
	fs.BoolVarP(&cli.Version, "version", "v", false, "Print version and exit")
	fs.BoolVarP(&cli.Help, "help", "h", false, "Show this help")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return cli, nil
}
