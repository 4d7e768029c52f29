// This program provides a command line client for a koin node.
package main

import "github.com/ardanlabs/koin/app/tooling/koin/cmd"

func main() {
	cmd.Execute()
}
