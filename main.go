// bulkxfer - bulk transfer of large fixed-record vectors to and from an
// S3-compatible object store.
package main

import (
	"github.com/vectorlink/bulkxfer/internal/cli"
)

func main() {
	cli.Execute()
}
