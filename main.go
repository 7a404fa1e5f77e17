package main

import (
	"github.com/energyvm/energy-edge/command/root"
)

func main() {
	root.NewRootCommand().Execute()
}
