// Command hash-generator prints bcrypt hashes for seeding user accounts.
// Passwords come from the arguments, or one per line on stdin.
package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/pflag"
	"golang.org/x/crypto/bcrypt"

	"github.com/phrazzld/taskmanager/internal/service/auth"
)

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "hash-generator: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, in io.Reader, out io.Writer) error {
	flags := pflag.NewFlagSet("hash-generator", pflag.ContinueOnError)
	flags.SetOutput(out)
	cost := flags.Int("cost", bcrypt.DefaultCost, "bcrypt cost")
	if err := flags.Parse(args); err != nil {
		return err
	}
	if *cost < bcrypt.MinCost || *cost > bcrypt.MaxCost {
		return fmt.Errorf("cost must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost)
	}
	hasher := auth.NewBcryptVerifier(*cost)

	passwords := flags.Args()
	if len(passwords) == 0 {
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			if line := sc.Text(); line != "" {
				passwords = append(passwords, line)
			}
		}
		if err := sc.Err(); err != nil {
			return fmt.Errorf("reading passwords: %w", err)
		}
	}

	for _, password := range passwords {
		hash, err := hasher.Hash(password)
		if err != nil {
			return fmt.Errorf("hashing password: %w", err)
		}
		fmt.Fprintln(out, hash)
	}
	return nil
}
