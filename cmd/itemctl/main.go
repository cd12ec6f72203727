/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

// Command itemctl inspects and edits the records of an item store data source.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
