package main

import "github.com/isdelr/stencil-be/cmd"

func main() {
	cmd.Execute()
}
