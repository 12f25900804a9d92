package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"
)

var CLI struct {
	Config   string      `help:"Configuration file path" default:"dbfixture.yaml"`
	Verbose  bool        `help:"Enable verbose output" short:"v"`
	Apply    ApplyCmd    `cmd:"" help:"Apply a dataset operation against a configured connection"`
	Verify   VerifyCmd   `cmd:"" help:"Compare dataset files against the live database state"`
	Validate ValidateCmd `cmd:"" help:"Parse and lint dataset files without touching a database"`
	Version  VersionCmd  `cmd:"" help:"Show version information"`
}

// Context represents the global context for commands
type Context struct {
	Config  string
	Verbose bool
}

func main() {
	ctx := kong.Parse(&CLI)

	appCtx := &Context{
		Config:  CLI.Config,
		Verbose: CLI.Verbose,
	}

	err := ctx.Run(appCtx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// VersionCmd represents the version command
type VersionCmd struct{}

// Run executes the version command
func (cmd *VersionCmd) Run() error {
	fmt.Println("dbfixture v0.1.0")
	return nil
}
