// PFKey - ProForma peptidoform toolkit
package main

import (
	"fmt"
	"os"

	"github.com/ChrisMcGann/PFKey/cmd/pfkey/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
