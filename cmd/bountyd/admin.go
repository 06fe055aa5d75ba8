package main

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/cyl19970726/Code3/container"
	"github.com/cyl19970726/Code3/core/bounty"
	"github.com/cyl19970726/Code3/security"
)

var initAuthority string

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the registry in the configured store",
	RunE: func(cmd *cobra.Command, args []string) error {
		authority, err := bounty.ParseAddress(initAuthority)
		if err != nil {
			return fmt.Errorf("--authority: %w", err)
		}
		c, err := container.NewContainer(cmd.Context(), configPath)
		if err != nil {
			return err
		}
		defer c.Close()

		reg, err := c.BountyService.Initialize(cmd.Context(), authority)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), reg)
	},
}

var fundCmd = &cobra.Command{
	Use:   "fund <address> <amount>",
	Short: "Credit an account from the development faucet",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, err := bounty.ParseAddress(args[0])
		if err != nil {
			return fmt.Errorf("address: %w", err)
		}
		amount, err := strconv.ParseUint(args[1], 10, 64)
		if err != nil {
			return fmt.Errorf("amount: %w", err)
		}
		c, err := container.NewContainer(cmd.Context(), configPath)
		if err != nil {
			return err
		}
		defer c.Close()

		bal, err := c.BountyService.Fund(cmd.Context(), addr, amount)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), bal)
	},
}

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate a signing key and print its identity",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		priv, err := security.GenerateKey()
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), map[string]string{
			"private_key": hex.EncodeToString(priv.Serialize()),
			"identity":    security.Identity(priv).String(),
		})
	},
}

var taskHashFile string

var taskHashCmd = &cobra.Command{
	Use:   "task-hash [text]",
	Short: "Print the Keccak-256 task hash of text, a file, or stdin",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var content []byte
		var err error
		switch {
		case taskHashFile != "":
			content, err = os.ReadFile(taskHashFile)
		case len(args) == 1:
			content = []byte(args[0])
		default:
			content, err = io.ReadAll(cmd.InOrStdin())
		}
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), bounty.TaskHash(content).String())
		return err
	},
}

func init() {
	initCmd.Flags().StringVar(&initAuthority, "authority", "", "base58 address of the registry authority")
	initCmd.MarkFlagRequired("authority")
	taskHashCmd.Flags().StringVarP(&taskHashFile, "file", "f", "", "hash the contents of this file")
}
