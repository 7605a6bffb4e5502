package common

import (
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"
	clihelpers "gitlab.com/gitlab-org/golang-cli-helpers"
)

var commands []cli.Command

// Commander executes the command with the cli.Context.
//
//go:generate mockery --name=Commander --inpackage
type Commander interface {
	Execute(c *cli.Context)
}

// CommanderFunc allows the registration of commands without having to explicitly implement
// the Commander interface for simple functions.
type CommanderFunc func(*cli.Context)

// Execute provides default implementation for Commander interface.
func (cf CommanderFunc) Execute(c *cli.Context) {
	cf(c)
}

// NewCommand constructs a command with the given name, usage, and flags.
// The fields of data tagged with `long:` become flags as well.
func NewCommand(name, usage string, data Commander, flags ...cli.Flag) cli.Command {
	return cli.Command{
		Name:   name,
		Usage:  usage,
		Action: data.Execute,
		Flags:  append(flags, clihelpers.GetFlagsFromStruct(data)...),
	}
}

// RegisterCommand adds a command to the application. Commands register
// themselves from init().
func RegisterCommand(name, usage string, data Commander, flags ...cli.Flag) {
	logrus.Debugln("Registering", name, "command...")
	commands = append(commands, NewCommand(name, usage, data, flags...))
}

func GetCommands() []cli.Command {
	return commands
}
