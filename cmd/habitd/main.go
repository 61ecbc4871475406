package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"
)

var CLI struct {
	Version kong.VersionFlag
	EnvFile string `help:"Optional .env file primed into the environment." default:".env" type:"path"`

	Serve     ServeCmd     `cmd:"" help:"Run the HTTP API." default:"1"`
	VAPIDKeys VAPIDKeysCmd `cmd:"" name:"vapid-keys" help:"Generate a VAPID key pair for web push."`
	Backup    BackupCmd    `cmd:"" help:"Upload an encrypted snapshot of the SQLite database now."`
	Restore   RestoreCmd   `cmd:"" help:"Download and decrypt a snapshot into a new database file."`
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name("habitd"),
		kong.Description("Habit and task tracking API server"),
		kong.UsageOnError(),
		kong.Vars{"version": "v0.1.0"},
	)

	if err := ctx.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
