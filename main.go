package main

import "pulsefm/cmd"

func main() {
	cmd.Execute()
}
