package main

import (
	"os"

	"github.com/ilhicas/openstack-usage-center/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
