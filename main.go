// Package main is the netfilter CLI.
package main

import "github.com/AdguardTeam/netfilter/internal/cmd"

func main() {
	cmd.Main()
}
