package commands

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/ardanlabs/powchain/foundation/blockchain/hashcash"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// ErrTokenInvalid is returned by the verify command when the nonce does
// not solve the puzzle for the content.
var ErrTokenInvalid = errors.New("token does not solve the puzzle")

func newHashcashCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hashcash",
		Short: "Find and verify proof of work tokens",
	}

	cmd.AddCommand(newFindCmd(), newVerifyCmd())

	return cmd
}

func newFindCmd() *cobra.Command {
	var (
		difficulty  int
		maxAttempts uint64
		timeout     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "find <content>",
		Short: "Search for the first nonce that solves the puzzle for the content",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			if timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}

			var opts []hashcash.Option
			if maxAttempts > 0 {
				opts = append(opts, hashcash.WithMaxAttempts(maxAttempts))
			}

			start := time.Now()
			digest, nonce, err := hashcash.FindToken(ctx, []byte(args[0]), difficulty, opts...)
			if err != nil {
				return fmt.Errorf("find token: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "nonce:  %d\n", nonce)
			fmt.Fprintf(out, "digest: %s\n", digest)
			fmt.Fprintf(out, "zeros:  %d\n", hashcash.CountLeadingZeros(digest))
			fmt.Fprintf(out, "took:   %s\n", time.Since(start).Round(time.Millisecond))

			return nil
		},
	}

	cmd.Flags().IntVarP(&difficulty, "difficulty", "d", hashcash.DefaultDifficulty, "Number of leading zeros the digest must have.")
	cmd.Flags().Uint64Var(&maxAttempts, "max-attempts", 0, "Give up after this many nonces, 0 for no limit.")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Give up after this long, 0 for no limit.")

	return cmd
}

func newVerifyCmd() *cobra.Command {
	var difficulty int

	cmd := &cobra.Command{
		Use:   "verify <content> <nonce>",
		Short: "Check that the nonce solves the puzzle for the content",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			nonce, err := strconv.ParseUint(args[1], 10, 64)
			if err != nil {
				return fmt.Errorf("parsing nonce: %w", err)
			}

			if err := hashcash.ValidateDifficulty(difficulty); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			digest := hashcash.Hash([]byte(args[0]), nonce)
			fmt.Fprintf(out, "digest: %s\n", digest)

			if !hashcash.Verify([]byte(args[0]), nonce, difficulty) {
				color.New(color.FgRed).Fprintf(out, "INVALID: %d leading zeros, need %d\n", hashcash.CountLeadingZeros(digest), difficulty)
				return ErrTokenInvalid
			}

			color.New(color.FgGreen).Fprintf(out, "VALID: %d leading zeros, need %d\n", hashcash.CountLeadingZeros(digest), difficulty)
			return nil
		},
	}

	cmd.Flags().IntVarP(&difficulty, "difficulty", "d", hashcash.DefaultDifficulty, "Number of leading zeros the digest must have.")

	return cmd
}
