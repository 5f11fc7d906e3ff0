// Command mdiminfo describes a multidimensional store.
package main

import (
	"fmt"
	"os"

	"github.com/batchatco/go-native-mdim/internal/cmd"
)

func main() {
	if err := cmd.RootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(-1)
	}
}
