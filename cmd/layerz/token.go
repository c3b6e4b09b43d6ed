package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/zoobzio/layerz"
)

var tokenFlags struct {
	unsampled bool
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Work with X-Trace tokens",
	Long: `Mint, decode and continue X-Trace tokens.

A token is "2B" followed by a 20-byte task id, an 8-byte op id and a flag
byte, all in uppercase hex.`,
}

var tokenNewCmd = &cobra.Command{
	Use:   "new",
	Short: "Mint a token for a new trace",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		md := layerz.NewMetadata(!tokenFlags.unsampled)
		fmt.Fprintln(cmd.OutOrStdout(), md.String())
	},
}

var tokenParseCmd = &cobra.Command{
	Use:   "parse <token>",
	Short: "Decode a token",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		md, err := layerz.ParseMetadata(args[0])
		if err != nil {
			return err
		}
		describe(cmd.OutOrStdout(), md)
		return nil
	},
}

var tokenContinueCmd = &cobra.Command{
	Use:   "continue <token>",
	Short: "Print a token for the next event in the same trace",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		md, err := layerz.ContinueFrom(args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), md.String())
		return nil
	},
}

func describe(w io.Writer, md layerz.Metadata) {
	fmt.Fprintf(w, "task:    %s\n", md.TaskID())
	fmt.Fprintf(w, "op:      %s\n", md.OpID())
	fmt.Fprintf(w, "flags:   %02X\n", md.Flags())
	fmt.Fprintf(w, "sampled: %t\n", md.Sampled())
	fmt.Fprintf(w, "valid:   %t\n", md.IsValid())
}

func init() {
	rootCmd.AddCommand(tokenCmd)
	tokenCmd.AddCommand(tokenNewCmd, tokenParseCmd, tokenContinueCmd)

	tokenNewCmd.Flags().BoolVar(&tokenFlags.unsampled, "unsampled", false, "clear the sampled flag")
}
