// Command sircasm assembles SIRC source into a relocatable object file.
package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"sirc/asm"
)

func main() {
	var inputFile, outputFile string

	root := &cobra.Command{
		Use:   "sircasm",
		Short: "Assemble SIRC source into a relocatable object file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAssemble(inputFile, outputFile)
		},
	}
	root.Flags().StringVar(&inputFile, "input-file", "", "SIRC assembly source file")
	root.Flags().StringVar(&outputFile, "output-file", "", "path to write the object file")
	_ = root.MarkFlagRequired("input-file")
	_ = root.MarkFlagRequired("output-file")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("sircasm: %v", err))
		os.Exit(1)
	}
}

func runAssemble(inputFile, outputFile string) error {
	src, err := os.ReadFile(inputFile)
	if err != nil {
		return fmt.Errorf("reading %s: %w", inputFile, err)
	}

	def, err := asm.Assemble(inputFile, string(src))
	if err != nil {
		return formatDiagnostic(string(src), err)
	}

	enc, err := def.Encode()
	if err != nil {
		return fmt.Errorf("encoding object file: %w", err)
	}
	if err := os.WriteFile(outputFile, enc, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", outputFile, err)
	}
	return nil
}
