package main

import (
	"fmt"
	"os"
	"strings"
	"syscall"

	"golang.org/x/term"

	"github.com/allaspectsdev/storepulse/internal/vault"
)

func cmdKeys(args []string) {
	if len(args) == 0 {
		fmt.Println("Usage: storepulse keys <list|get|set|delete> [name]")
		fmt.Printf("Known secrets: %s\n", strings.Join(vault.KnownSecrets, ", "))
		os.Exit(1)
	}

	v := vault.New()

	switch args[0] {
	case "list":
		found := v.List()
		if len(found) == 0 {
			fmt.Println("No gateway secrets stored")
			return
		}
		for _, name := range found {
			fmt.Printf("  %s: ****\n", name)
		}

	case "get":
		name := keyName(args)
		if _, err := v.Get(name); err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			os.Exit(1)
		}
		fmt.Printf("%s is set\n", name)

	case "set":
		name := keyName(args)
		fmt.Printf("Enter value for %s: ", name)
		secret, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Println()
		if err != nil {
			fmt.Fprintf(os.Stderr, "error reading secret: %v\n", err)
			os.Exit(1)
		}
		if err := v.Set(name, strings.TrimSpace(string(secret))); err != nil {
			fmt.Fprintf(os.Stderr, "error storing secret: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("%s stored successfully\n", name)

	case "delete":
		name := keyName(args)
		if err := v.Delete(name); err != nil {
			fmt.Fprintf(os.Stderr, "error deleting secret: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("%s deleted\n", name)

	default:
		fmt.Fprintf(os.Stderr, "unknown keys command: %s\n", args[0])
		os.Exit(1)
	}
}

// keyName returns the normalised secret name argument or exits.
func keyName(args []string) string {
	if len(args) < 2 {
		fmt.Printf("Usage: storepulse keys %s <name>\n", args[0])
		os.Exit(1)
	}
	return strings.ToLower(strings.TrimSpace(args[1]))
}
