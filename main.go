// The main package for the catalogcrawler executable.
package main

import (
	"github.com/bookscrape/catalog-crawler/cmd"
)

func main() {
	cmd.Execute()
}
