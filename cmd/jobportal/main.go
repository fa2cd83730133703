package main

import (
	"fmt"
	"os"

	"github.com/hitoshi/jobportal/internal/app"
)

func main() {
	if err := app.Run(os.Stderr, os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "jobportal: %v\n", err)
		os.Exit(1)
	}
}
