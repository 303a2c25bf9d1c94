package main

import (
	"fmt"
	"io"

	gladtex "github.com/alnah/go-gladtex"
	flag "github.com/spf13/pflag"
)

// excludedFileHelp names the exclusion file in flag help text.
const excludedFileHelp = gladtex.ExclusionFileName

// printUsage writes the command synopsis and the flag table.
func printUsage(w io.Writer, fs *flag.FlagSet) {
	fmt.Fprintln(w, "usage: gladtex [flags] [input.htex]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Convert LaTeX formulas embedded in an HTML document to images.")
	fmt.Fprintln(w, "Reads from stdin when no input file is given; an input file")
	fmt.Fprintln(w, "ending in .htex is written next to it as .html unless -o is set.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  doctor    check that the required external tools are available")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Flags:")
	fmt.Fprint(w, fs.FlagUsages())
}
