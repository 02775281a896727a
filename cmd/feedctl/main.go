package main

import "github.com/dnslin/sessionretry/internal/cli"

func main() {
	cli.Execute()
}
