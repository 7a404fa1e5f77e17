package root

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/energyvm/energy-edge/command"
	"github.com/energyvm/energy-edge/command/run"
	"github.com/energyvm/energy-edge/command/version"
)

type RootCommand struct {
	baseCmd *cobra.Command
}

func NewRootCommand() *RootCommand {
	rootCommand := &RootCommand{
		baseCmd: &cobra.Command{
			Use:   "energy-edge",
			Short: "energy-edge runs smart contracts under energy accounting",
		},
	}

	command.RegisterJSONOutputFlag(rootCommand.baseCmd)

	rootCommand.registerSubCommands()

	return rootCommand
}

func (rc *RootCommand) registerSubCommands() {
	rc.baseCmd.AddCommand(
		version.GetCommand(),
		run.GetCommand(),
	)
}

func (rc *RootCommand) Execute() {
	if err := rc.baseCmd.Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)

		os.Exit(1)
	}
}
