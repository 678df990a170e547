package main

import "phonecheck/internal/cli"

func main() {
	cli.Execute()
}
