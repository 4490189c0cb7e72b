package main

import (
	"context"
	"fmt"
	"os"

	"github.com/mii-cds/cdstoolbox/cmd"
)

func main() {
	if err := cmd.NewCommand().Execute(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
