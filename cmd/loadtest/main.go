package main

import (
	"github.com/Blodie/locust-stages/internal/cli"
)

func main() {
	cli.Execute()
}
