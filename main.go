package main

import (
	"os"

	"github.com/LovationAdmin/financas-api/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
