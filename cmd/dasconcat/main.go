// Command dasconcat assembles Mekorot/Prisma DAS acquisition packets
// into fixed-duration, canonical-rate chunks, resuming from an on-disk
// checkpoint across restarts.
package main

import "os"

func main() {
	if err := RootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
