package main

import (
	"fmt"
	"strconv"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/Layr-Labs/hashtree-go/pkg/clients/treeClient"
	"github.com/Layr-Labs/hashtree-go/pkg/logger"
	"github.com/Layr-Labs/hashtree-go/pkg/types"
)

func remoteCommand() *cli.Command {
	return &cli.Command{
		Name:  "remote",
		Usage: "Work with trees stored on a hashtree server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "server",
				Aliases: []string{"s"},
				Value:   "http://localhost:8080",
				Usage:   "Server URL",
				EnvVars: []string{"HASHTREE_SERVER_URL"},
			},
			&cli.StringFlag{
				Name:    "token",
				Usage:   "Bearer token for write endpoints",
				EnvVars: []string{"HASHTREE_TOKEN"},
			},
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "Enable verbose logging",
			},
		},
		Subcommands: []*cli.Command{
			{
				Name:  "create",
				Usage: "Build and store a tree on the server",
				Flags: inputFlags(),
				Action: func(c *cli.Context) error {
					client, err := newRemoteClient(c)
					if err != nil {
						return err
					}

					var resp *types.TreeResponse
					if leaves := c.StringSlice("leaf"); len(leaves) > 0 {
						digests, err := types.ParseDigests(leaves)
						if err != nil {
							return err
						}
						resp, err = client.CreateTree(c.Context, digests)
						if err != nil {
							return err
						}
					} else {
						data := c.StringSlice("data")
						if file := c.String("file"); file != "" {
							if data, err = readLines(c.App.Reader, file); err != nil {
								return err
							}
						}
						if resp, err = client.CreateTreeFromData(c.Context, data); err != nil {
							return err
						}
					}
					return writeJSONOut(c.App.Writer, resp)
				},
			},
			{
				Name:      "get",
				Usage:     "Show a stored tree",
				ArgsUsage: "<tree-id>",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "layers", Usage: "Include the padded layers"},
				},
				Action: func(c *cli.Context) error {
					client, err := newRemoteClient(c)
					if err != nil {
						return err
					}
					id, err := treeID(c)
					if err != nil {
						return err
					}
					resp, err := client.GetTree(c.Context, id, c.Bool("layers"))
					if err != nil {
						return err
					}
					return writeJSONOut(c.App.Writer, resp)
				},
			},
			{
				Name:  "list",
				Usage: "List stored trees",
				Action: func(c *cli.Context) error {
					client, err := newRemoteClient(c)
					if err != nil {
						return err
					}
					trees, err := client.ListTrees(c.Context)
					if err != nil {
						return err
					}
					for _, t := range trees {
						fmt.Fprintf(c.App.Writer, "%s  %s  leaves=%d  %s\n", t.ID, t.Root.Hex(), t.LeafCount, t.HashAlgorithm)
					}
					return nil
				},
			},
			{
				Name:      "delete",
				Usage:     "Delete a stored tree",
				ArgsUsage: "<tree-id>",
				Action: func(c *cli.Context) error {
					client, err := newRemoteClient(c)
					if err != nil {
						return err
					}
					id, err := treeID(c)
					if err != nil {
						return err
					}
					return client.DeleteTree(c.Context, id)
				},
			},
			{
				Name:      "prove",
				Usage:     "Fetch a proof and check it locally against the tree root",
				ArgsUsage: "<tree-id> <leaf-index>",
				Action: func(c *cli.Context) error {
					client, err := newRemoteClient(c)
					if err != nil {
						return err
					}
					if c.NArg() != 2 {
						return fmt.Errorf("expected <tree-id> <leaf-index>")
					}
					index, err := strconv.ParseUint(c.Args().Get(1), 10, 64)
					if err != nil {
						return fmt.Errorf("invalid leaf index %q", c.Args().Get(1))
					}

					proof, valid, err := client.ProveAndVerify(c.Context, c.Args().First(), index)
					if err != nil {
						return err
					}
					if !valid {
						_, _ = invalidColor.Fprintln(c.App.ErrWriter, "proof returned by server does not match its root")
						return cli.Exit("", 1)
					}
					return writeJSONOut(c.App.Writer, proof)
				},
			},
			{
				Name:      "layout",
				Usage:     "Ask the server for the layout of a leaf count",
				ArgsUsage: "<leaf-count>",
				Action: func(c *cli.Context) error {
					client, err := newRemoteClient(c)
					if err != nil {
						return err
					}
					count, err := strconv.ParseUint(c.Args().First(), 10, 64)
					if err != nil {
						return fmt.Errorf("invalid leaf count %q", c.Args().First())
					}
					resp, err := client.Layout(c.Context, count)
					if err != nil {
						return err
					}
					return writeJSONOut(c.App.Writer, resp)
				},
			},
		},
	}
}

func newRemoteClient(c *cli.Context) (*treeClient.Client, error) {
	l := zap.NewNop()
	if c.Bool("verbose") {
		var err error
		if l, err = logger.NewLogger(&logger.LoggerConfig{Debug: true}); err != nil {
			return nil, fmt.Errorf("failed to create logger: %w", err)
		}
	}
	return treeClient.NewClient(&treeClient.ClientConfig{
		ServerURL:   c.String("server"),
		BearerToken: c.String("token"),
		Logger:      l,
	})
}

func treeID(c *cli.Context) (string, error) {
	if c.NArg() != 1 {
		return "", fmt.Errorf("expected exactly one tree id argument")
	}
	return c.Args().First(), nil
}
