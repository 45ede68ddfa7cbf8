package main

import (
	"os"

	"github.com/vacon/signaling/cmd/vacon/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
