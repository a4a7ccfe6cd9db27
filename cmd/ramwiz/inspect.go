package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/ziadomalik/ramwiz/internal/trace"
)

func inspectCmd() *cli.Command {
	var showEntries int64

	return &cli.Command{
		Name:      "inspect",
		Usage:     "Print the header, dictionary and first entries of a trace",
		ArgsUsage: "<path.ram2>",
		Flags: []cli.Flag{
			&cli.Int64Flag{
				Name:        "entries",
				Usage:       "number of entries to list (0 to skip, -1 for all)",
				Value:       10,
				Destination: &showEntries,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.Args().Len() < 1 {
				return cli.Exit("usage: ramwiz inspect [--entries N] <path.ram2>", 2)
			}
			path := cmd.Args().First()

			st, err := trace.Open(path)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			h := st.Header()
			fmt.Printf("File: %s\n", path)
			fmt.Printf("RAM2 v%d | entries=%d | commands=%d | dict_offset=%d | size=%d\n",
				h.Version, h.NumEntries, h.NumCommands, h.DictOffset, st.Size())

			dict, err := st.LoadDictionary()
			if err != nil {
				return err
			}
			fmt.Println("\nDictionary:")
			for id := 0; id < int(h.NumCommands); id++ {
				fmt.Printf("  %3d  %s\n", id, dict[uint8(id)])
			}

			if h.NumEntries > 0 {
				first, err := st.LoadEntry(0)
				if err != nil {
					return err
				}
				last, err := st.LoadEntry(h.NumEntries - 1)
				if err != nil {
					return err
				}
				fmt.Printf("\nClk range: [%d, %d]\n", first.Clk, last.Clk)
			}

			n := h.NumEntries
			if showEntries == 0 {
				return nil
			}
			if showEntries > 0 && uint64(showEntries) < n {
				n = uint64(showEntries)
			}
			slice, err := st.LoadEntrySlice(0, int(n))
			if err != nil {
				return err
			}
			fmt.Println("\nEntries:")
			fmt.Printf("  %12s %-8s %3s %4s %4s %4s %6s %6s\n",
				"clk", "cmd", "ch", "rk", "bg", "bk", "row", "col")
			for i := 0; i < slice.Len(); i++ {
				e := slice.At(i)
				name, ok := dict[e.CmdID]
				if !ok {
					name = fmt.Sprintf("id(%d)", e.CmdID)
				}
				fmt.Printf("  %12d %-8s %3d %4d %4d %4d %6d %6d\n",
					e.Clk, name, e.Channel, e.Rank, e.Bankgroup, e.Bank, e.Row, e.Column)
			}
			if uint64(slice.Len()) < h.NumEntries {
				fmt.Printf("  ... %d more\n", h.NumEntries-uint64(slice.Len()))
			}
			return nil
		},
	}
}
