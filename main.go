package main

import "github.com/nhle/todoplus/cmd"

func main() {
	cmd.Execute()
}
