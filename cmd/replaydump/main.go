// replaydump prints a recorded event log as plain JSONL, optionally
// filtered by kind. Useful for diffing two runs of the same seed.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"beltline/replay"
)

func main() {
	kind := flag.String("kind", "", "Only print events of this kind (grant, deny, handoff, delivery, spawn, power)")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: replaydump [-kind k] <events.jsonl.zst>")
		os.Exit(2)
	}

	events, err := replay.ReadAll(flag.Arg(0))
	if err != nil {
		fmt.Fprintln(os.Stderr, "replaydump:", err)
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	for _, ev := range events {
		if *kind != "" && ev.Kind != *kind {
			continue
		}
		if err := enc.Encode(ev); err != nil {
			fmt.Fprintln(os.Stderr, "replaydump:", err)
			os.Exit(1)
		}
	}
}
