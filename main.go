package main

import "showmerge/cmd"

func main() {
	cmd.Execute()
}
