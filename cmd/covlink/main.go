package main

import (
	"fmt"
	"os"

	"github.com/maciekjanusz/covlink/cmd/covlink/app"
)

func main() {
	if err := app.NewCovlinkCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
