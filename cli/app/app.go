package app

import (
	"fmt"
	"os"
	"runtime"

	"github.com/nspcc-dev/notetree/cli/options"
	"github.com/nspcc-dev/notetree/cli/tree"
	"github.com/nspcc-dev/notetree/pkg/config"
	"github.com/urfave/cli"
)

func versionPrinter(c *cli.Context) {
	_, _ = fmt.Fprintf(c.App.Writer, "NoteTree\nVersion: %s\nGoVersion: %s\n",
		config.Version,
		runtime.Version(),
	)
}

// New creates a NoteTree instance of [cli.App] with all commands included.
func New() *cli.App {
	cli.VersionPrinter = versionPrinter
	ctl := cli.NewApp()
	ctl.Name = "notetree"
	ctl.Version = config.Version
	ctl.Usage = "Persistent sparse Merkle tree storage"
	ctl.ErrWriter = os.Stdout
	ctl.Flags = []cli.Flag{options.ConfigFile, options.Debug}

	ctl.Commands = append(ctl.Commands, tree.NewCommands()...)
	return ctl
}
