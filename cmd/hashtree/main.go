package main

import (
	"log"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"

	"github.com/Layr-Labs/hashtree-go/pkg/hasher"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatalf("Application error: %v", err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "hashtree",
		Usage: "Build Merkle hash trees, produce inclusion proofs and verify them",
		Description: `Offline commands build a tree locally from raw data (--data, --file) or
hex leaf digests (--leaf). The remote command talks to a hashtree server.`,
		Version: "1.0.0",
		// raw data may contain commas
		DisableSliceFlagSeparator: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "hash",
				Value: hasher.DefaultAlgorithm,
				Usage: "Hash algorithm: " + strings.Join(hasher.Names(), ", "),
			},
			&cli.BoolFlag{
				Name:  "no-color",
				Usage: "Disable colored output",
			},
		},
		Before: func(c *cli.Context) error {
			if c.Bool("no-color") {
				color.NoColor = true
			}
			return nil
		},
		Commands: []*cli.Command{
			rootCommand(),
			proveCommand(),
			verifyCommand(),
			layoutCommand(),
			dumpCommand(),
			remoteCommand(),
		},
	}
}
