package main

import "staking-ledger/cmd"

func main() {
	cmd.Execute()
}
