package main

import "github.com/stevehiehn/greenscreen/cmd"

func main() {
	cmd.Execute()
}
