package main

import (
	"github.com/spf13/cobra"
)

func main() {
	var root = &cobra.Command{Use: "companion"}

	root.AddCommand(serveCMD(), ingestCMD(), statsCMD())
	_ = root.Execute()
}
