package main

import "dupefinder/cmd"

func main() {
	cmd.Execute()
}
