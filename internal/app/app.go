package app

import (
	"github.com/urfave/cli/v2"
)

func New() *cli.App {
	return &cli.App{
		Name:  "hearyouout",
		Usage: "answer the question of the day out loud and hear what others said",
		Flags: []cli.Flag{
			configFlag,
			debugFlag,
		},
		DefaultCommand: "run",
		Commands: []*cli.Command{
			NewRunCommand(),
			NewLoginCommand(),
			NewQuestionCommand(),
			NewDoctorCommand(),
		},
	}
}
