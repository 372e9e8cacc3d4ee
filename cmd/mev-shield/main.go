package main

import (
	"github.com/mev-shield/tx-protection-engine/internal/cli"
)

func main() {
	cli.Execute()
}
