package main

import (
	"os"

	"spo-preflight/internal/cmd"
)

// main runs the serve command on its own, for deployments that only want
// the API
func main() {
	serveCmd := cmd.NewServeCommand()
	serveCmd.Use = "preflight-server"
	serveCmd.SilenceUsage = true
	serveCmd.SilenceErrors = true
	os.Exit(cmd.Execute(serveCmd))
}
