package main

import (
	"balance-sentinel/internal/cli"
)

func main() {
	cli.Execute()
}
