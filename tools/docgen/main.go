// Package main generates CLI reference documentation from the wwctl command
// tree.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra/doc"

	"github.com/tlundberg/wishwatch/cmd/wwctl/cmd"
)

// prepender adds a title and a regeneration notice to each generated page.
// The filename encodes the command path, e.g. wwctl_products_track.md.
func prepender(filename string) string {
	name := strings.TrimSuffix(filepath.Base(filename), ".md")
	title := strings.ReplaceAll(name, "_", " ")
	return fmt.Sprintf("# %s\n\n<!-- regenerate with: go run ./tools/docgen -->\n\n", title)
}

// linkHandler keeps cross-command links pointing at sibling markdown files.
func linkHandler(name string) string {
	return name
}

func main() {
	output := flag.String("output", "docs/cli", "output directory for generated markdown")
	flag.Parse()

	if err := os.MkdirAll(*output, 0o750); err != nil {
		log.Fatalf("creating output directory: %v", err)
	}

	root := cmd.Root()
	root.DisableAutoGenTag = true

	if err := doc.GenMarkdownTreeCustom(root, *output, prepender, linkHandler); err != nil {
		log.Fatalf("generating docs: %v", err)
	}

	fmt.Printf("CLI docs generated in %s/\n", *output)
}
