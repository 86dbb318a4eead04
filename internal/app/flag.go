package app

import "github.com/urfave/cli/v2"

var configFlag = &cli.StringFlag{
	Name:    "config",
	Aliases: []string{"c"},
	Usage:   "Path to an env-format config file",
	EnvVars: []string{"HYO_ENV_PATH"},
}

var debugFlag = &cli.BoolFlag{
	Name:  "debug",
	Usage: "Enable debug log",
	Value: false,
}

var jsonFlag = &cli.BoolFlag{
	Name:  "json",
	Usage: "Print JSON instead of text",
}
