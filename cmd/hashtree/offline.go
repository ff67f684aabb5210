package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"

	"github.com/Layr-Labs/hashtree-go/pkg/hasher"
	"github.com/Layr-Labs/hashtree-go/pkg/merkle"
	"github.com/Layr-Labs/hashtree-go/pkg/types"
)

var (
	validColor   = color.New(color.FgGreen, color.Bold)
	invalidColor = color.New(color.FgRed, color.Bold)
	warnColor    = color.New(color.FgYellow)
)

func inputFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringSliceFlag{
			Name:  "data",
			Usage: "Raw input hashed into a leaf (repeatable)",
		},
		&cli.StringSliceFlag{
			Name:  "leaf",
			Usage: "Hex leaf digest (repeatable)",
		},
		&cli.StringFlag{
			Name:  "file",
			Usage: "File with one raw input per line, or - for stdin",
		},
	}
}

func selectedHasher(c *cli.Context) (hasher.Hasher, error) {
	return hasher.New(c.String("hash"))
}

// readLeaves turns exactly one of --data, --leaf or --file into leaf digests
func readLeaves(c *cli.Context, h hasher.Hasher) ([]types.Digest, error) {
	data, leaves, file := c.StringSlice("data"), c.StringSlice("leaf"), c.String("file")

	set := 0
	for _, given := range []bool{len(data) > 0, len(leaves) > 0, file != ""} {
		if given {
			set++
		}
	}
	if set != 1 {
		return nil, fmt.Errorf("exactly one of --data, --leaf or --file is required")
	}

	switch {
	case len(leaves) > 0:
		return types.ParseDigests(leaves)
	case file != "":
		lines, err := readLines(c.App.Reader, file)
		if err != nil {
			return nil, err
		}
		data = lines
	}

	raw := make([][]byte, len(data))
	for i, d := range data {
		raw[i] = []byte(d)
	}
	return merkle.HashLeaves(h, raw), nil
}

func readLines(stdin io.Reader, path string) ([]string, error) {
	r := stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %w", path, err)
		}
		defer func() { _ = f.Close() }()
		r = f
	}

	var lines []string
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16<<20)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return lines, nil
}

func buildTree(c *cli.Context) (*merkle.HashTree, error) {
	h, err := selectedHasher(c)
	if err != nil {
		return nil, err
	}
	leaves, err := readLeaves(c, h)
	if err != nil {
		return nil, err
	}
	return merkle.Build(h, leaves)
}

func writeJSONOut(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func rootCommand() *cli.Command {
	return &cli.Command{
		Name:  "root",
		Usage: "Print the root digest of a tree",
		Flags: inputFlags(),
		Action: func(c *cli.Context) error {
			tree, err := buildTree(c)
			if err != nil {
				return err
			}
			root, err := tree.Root()
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(c.App.Writer, root.Hex())
			return err
		},
	}
}

func proveCommand() *cli.Command {
	return &cli.Command{
		Name:  "prove",
		Usage: "Print the inclusion proof of one leaf as JSON",
		Flags: append(inputFlags(),
			&cli.Uint64Flag{
				Name:     "index",
				Aliases:  []string{"i"},
				Usage:    "Leaf index",
				Required: true,
			},
		),
		Action: func(c *cli.Context) error {
			tree, err := buildTree(c)
			if err != nil {
				return err
			}
			proof, err := tree.Prove(c.Uint64("index"))
			if err != nil {
				return err
			}
			return writeJSONOut(c.App.Writer, proof)
		},
	}
}

func verifyCommand() *cli.Command {
	return &cli.Command{
		Name:  "verify",
		Usage: "Check a JSON proof against a root; exits 1 when the proof is invalid",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "proof",
				Usage: "Proof JSON file, or - for stdin",
				Value: "-",
			},
			&cli.StringFlag{
				Name:     "root",
				Usage:    "Expected hex root digest",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "leaf",
				Usage: "Hex leaf digest; defaults to the leaf recorded in the proof",
			},
			&cli.StringFlag{
				Name:  "data",
				Usage: "Raw input hashed into the leaf",
			},
		},
		Action: func(c *cli.Context) error {
			h, err := selectedHasher(c)
			if err != nil {
				return err
			}

			proof, err := readProof(c.App.Reader, c.String("proof"))
			if err != nil {
				return err
			}
			root, err := types.ParseDigest(c.String("root"))
			if err != nil {
				return fmt.Errorf("invalid --root: %w", err)
			}

			leaf := proof.Leaf
			switch {
			case c.IsSet("leaf") && c.IsSet("data"):
				return fmt.Errorf("set either --leaf or --data, not both")
			case c.IsSet("leaf"):
				if leaf, err = types.ParseDigest(c.String("leaf")); err != nil {
					return fmt.Errorf("invalid --leaf: %w", err)
				}
			case c.IsSet("data"):
				leaf = h.Hash([]byte(c.String("data")))
			}

			if merkle.VerifyProof(h, leaf, proof, root) {
				_, err = validColor.Fprintln(c.App.Writer, "VALID")
				return err
			}
			_, _ = invalidColor.Fprintln(c.App.Writer, "INVALID")
			return cli.Exit("proof does not match root", 1)
		},
	}
}

func readProof(stdin io.Reader, path string) (*types.Proof, error) {
	r := stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open proof: %w", err)
		}
		defer func() { _ = f.Close() }()
		r = f
	}

	var proof types.Proof
	if err := json.NewDecoder(r).Decode(&proof); err != nil {
		return nil, fmt.Errorf("failed to decode proof: %w", err)
	}
	return &proof, nil
}

func layoutCommand() *cli.Command {
	return &cli.Command{
		Name:      "layout",
		Usage:     "Print planned and advisory level sizes for a leaf count",
		ArgsUsage: "<leaf-count>",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("expected exactly one leaf count argument")
			}
			count, err := strconv.ParseUint(c.Args().First(), 10, 64)
			if err != nil {
				return fmt.Errorf("invalid leaf count %q", c.Args().First())
			}

			layout, err := merkle.PlanLayout(count)
			if err != nil {
				return err
			}

			w := c.App.Writer
			fmt.Fprintf(w, "leaves: %d\ndepth: %d\n", layout.LeafCount, layout.Depth)
			for level, size := range layout.LevelSizes {
				fmt.Fprintf(w, "level %d: %d (advisory %d)\n", level, size, layout.AdvisoryLevelSizes[level])
			}
			fmt.Fprintf(w, "total slots: %d\n", layout.TotalSlots())
			if !layout.Consistent() {
				_, _ = warnColor.Fprintf(w, "advisory plan under-allocates %d level(s)\n", len(layout.Discrepancies()))
			}
			return nil
		},
	}
}

func dumpCommand() *cli.Command {
	return &cli.Command{
		Name:  "dump",
		Usage: "Print every stored layer, root first",
		Flags: append(inputFlags(),
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Print layers leaves-first as JSON",
			},
		),
		Action: func(c *cli.Context) error {
			tree, err := buildTree(c)
			if err != nil {
				return err
			}
			if c.Bool("json") {
				return writeJSONOut(c.App.Writer, tree.Layers())
			}
			_, err = fmt.Fprintln(c.App.Writer, strings.TrimRight(tree.String(), "\n"))
			return err
		},
	}
}
