package main

import (
	"github.com/mirrormk/mirrormk/cmd"
	"github.com/mirrormk/mirrormk/cmd/util"
)

func main() {
	defer util.HandlePanic()
	cmd.Execute()
}
