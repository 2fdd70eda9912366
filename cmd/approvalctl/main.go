// Command approvalctl inspects approval activity from the command line.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd(openContainer).Execute(); err != nil {
		os.Exit(1)
	}
}
