package main

import (
	"fmt"
	"os"

	"github.com/koustreak/s3helper/cmd/s3helper/command"
)

func main() {
	if err := command.NewCmd(nil).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
