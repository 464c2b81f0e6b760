package main

import (
	"errors"
	"os"

	"github.com/cat21/botbox/pkg/cli"
	"github.com/cat21/botbox/pkg/docker/command"
	"github.com/cat21/botbox/pkg/util/console"
)

func main() {
	cmd, err := cli.NewRootCommand()
	if err != nil {
		console.Fatalf("%s", err)
	}

	if err = cmd.Execute(); err != nil {
		console.Error(err.Error())
		// A bot that exits non-zero under `botbox run` keeps its status.
		var exitErr *command.ExitError
		if errors.As(err, &exitErr) && exitErr.Code > 0 && exitErr.Code < 256 {
			os.Exit(int(exitErr.Code))
		}
		os.Exit(1)
	}
}
