package main

import "string-scout/internal/cli"

func main() {
	cli.Execute()
}
