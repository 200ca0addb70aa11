package main

import (
	"github.com/grodin-io/freq/pkg/cli"
)

func main() {
	cli.Execute()
}
