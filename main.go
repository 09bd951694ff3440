package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/containifyci/repostack/cmd"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
	repo    = "github.com/containifyci/repostack"
)

func main() {
	v := cmd.SetVersionInfo(version, commit, date, repo)
	slog.Info("version", "version", v)
	err := cmd.Execute()
	if err != nil {
		fmt.Printf("fatal: %v\n", err)
		os.Exit(1)
	}
}
