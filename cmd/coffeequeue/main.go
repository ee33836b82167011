package main

import (
	"coffee-queue/internal/cli"
)

func main() {
	cli.Execute()
}
