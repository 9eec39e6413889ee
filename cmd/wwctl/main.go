// wwctl is the command-line client for the wishwatch API.
package main

import "github.com/tlundberg/wishwatch/cmd/wwctl/cmd"

func main() {
	cmd.Execute()
}
