// Command sirclink links one or more SIRC object files into a flat,
// little-endian program image ready for mem.Segment.LoadImage, plus a
// ".dbg" sidecar carrying the combined symbol table and debug info.
package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"sirc/link"
	"sirc/object"
)

func main() {
	var outputFile string
	var segmentOffset uint32

	root := &cobra.Command{
		Use:   "sirclink [object-files...]",
		Short: "Link SIRC object files into a flat program image",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLink(args, outputFile, segmentOffset)
		},
	}
	root.Flags().StringVar(&outputFile, "output-file", "", "path to write the linked image")
	root.Flags().Uint32Var(&segmentOffset, "segment-offset", 0, "base address the first unit is laid out at")
	_ = root.MarkFlagRequired("output-file")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("sirclink: %v", err))
		os.Exit(1)
	}
}

func runLink(paths []string, outputFile string, segmentOffset uint32) error {
	units := make([]link.Unit, len(paths))
	for i, p := range paths {
		raw, err := os.ReadFile(p)
		if err != nil {
			return fmt.Errorf("reading %s: %w", p, err)
		}
		def, err := object.Decode(raw)
		if err != nil {
			return fmt.Errorf("decoding %s: %w", p, err)
		}
		units[i] = link.Unit{Name: p, Def: def}
	}

	result, err := link.Link(segmentOffset, units)
	if err != nil {
		return err
	}

	if err := os.WriteFile(outputFile, result.Image, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", outputFile, err)
	}

	sidecar := object.Definition{Symbols: result.Symbols, Debug: result.Debug}
	enc, err := sidecar.Encode()
	if err != nil {
		return fmt.Errorf("encoding debug sidecar: %w", err)
	}
	if err := os.WriteFile(outputFile+".dbg", enc, 0o644); err != nil {
		return fmt.Errorf("writing debug sidecar: %w", err)
	}

	for _, sym := range result.SortedSymbols() {
		fmt.Printf("%-32s %#08x\n", sym.Name, sym.Address)
	}
	return nil
}
