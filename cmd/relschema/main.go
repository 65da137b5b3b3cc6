// Command relschema validates schema documents, generates and applies DDL,
// checks a live store for drift and serves records over HTTP.
package main

import "os"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
