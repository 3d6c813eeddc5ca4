package main

import (
	"os"

	"github.com/andrej220/sshop/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
