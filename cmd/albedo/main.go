package main

import "github.com/vinicius-lino-figueiredo/albedo/internal/cli"

func main() {
	cli.Execute()
}
