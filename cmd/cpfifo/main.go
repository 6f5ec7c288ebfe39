// Command cpfifo replays recorded GPU command streams through the command
// FIFO.
package main

import "github.com/sarchlab/cpfifo/cmd/cpfifo/cmd"

func main() {
	cmd.Execute()
}
