package main

import (
	_ "go.uber.org/automaxprocs"

	"github.com/sevadaan/perfmon/cmd/perfmon/cmd"
)

func main() {
	cmd.Execute()
}
