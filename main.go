package main

import "treeline/arbor/cmd"

func main() {
	cmd.Execute()
}
