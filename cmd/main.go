package main

import (
	"os"

	"spo-preflight/internal/cmd"
)

func main() {
	os.Exit(cmd.Execute(cmd.NewRootCommand()))
}
