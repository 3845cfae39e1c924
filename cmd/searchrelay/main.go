package main

import "github.com/vietddude/searchrelay/internal/cli"

func main() {
	cli.Execute()
}
