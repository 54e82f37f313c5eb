package main

import (
	"os"

	"github.com/ytget/ytqueue/internal/cli"
)

var version = "dev"

func main() {
	os.Exit(cli.Execute(version))
}
