package main

import (
	"matpulse/internal/cli"
)

func main() {
	cli.Execute()
}
