package main

import "cleanzone-api/cmd"

func main() {
	cmd.Execute()
}
