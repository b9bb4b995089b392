package main

import (
	"os"

	"github.com/Angella-Mulikatete/AmplystV2-sub001/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
