package main

import (
	"os"

	"github.com/ObiAU/pinyinfeed/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
