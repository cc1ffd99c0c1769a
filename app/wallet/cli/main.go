// This program provides a command line wallet for the pixel board contract.
package main

import "github.com/ardanlabs/pixelboard/app/wallet/cli/cmd"

func main() {
	cmd.Execute()
}
