package main

import "github.com/dillspilit/scripthub/cmd/scripthub/cmd"

func main() {
	cmd.Execute()
}
