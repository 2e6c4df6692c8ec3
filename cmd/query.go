package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"treeline/arbor/internal/db"
	"treeline/arbor/internal/tree"
)

var (
	showTree     bool
	ancestorSelf bool
)

var showCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a node with its parent, root and children",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, d, err := OpenEngine(true)
		if err != nil {
			return err
		}
		defer d.Close()

		ctx := cmd.Context()
		n, err := ResolveNode(ctx, e, args[0])
		if err != nil {
			return err
		}
		root, err := e.Root(ctx, n)
		if err != nil {
			return err
		}
		family, err := e.Family(ctx, n)
		if err != nil {
			return err
		}
		children, err := e.Children(ctx, n)
		if err != nil {
			return err
		}

		if jsonOut {
			if children == nil {
				children = []db.Node{}
			}
			return printJSON(struct {
				Node     *db.Node  `json:"node"`
				IsRoot   bool      `json:"is_root"`
				IsLeaf   bool      `json:"is_leaf"`
				Root     *db.Node  `json:"root"`
				Family   *db.Node  `json:"family"`
				Children []db.Node `json:"children"`
			}{n, n.IsRoot(), n.IsLeaf(), root, family, children})
		}

		printNode(n)
		fmt.Printf("  root=%t leaf=%t\n", n.IsRoot(), n.IsLeaf())
		if root != nil {
			fmt.Printf("  tree root: %d\n", root.ID)
		}
		if family != nil {
			fmt.Printf("  family: %d\n", family.ID)
		}
		fmt.Println()
		return printNodes("children", children)
	},
}

var ancestorsCmd = &cobra.Command{
	Use:   "ancestors <id>",
	Short: "List a node's ancestors, root first",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, d, err := OpenEngine(true)
		if err != nil {
			return err
		}
		defer d.Close()

		n, err := ResolveNode(cmd.Context(), e, args[0])
		if err != nil {
			return err
		}
		nodes, err := e.Ancestors(cmd.Context(), n, ancestorSelf)
		if err != nil {
			return err
		}
		return printNodes("ancestors", nodes)
	},
}

var descendantsCmd = &cobra.Command{
	Use:   "descendants <id>",
	Short: "List a node's descendants breadth first (or in tree order with --tree)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, d, err := OpenEngine(true)
		if err != nil {
			return err
		}
		defer d.Close()

		n, err := ResolveNode(cmd.Context(), e, args[0])
		if err != nil {
			return err
		}
		nodes, err := e.Descendants(cmd.Context(), n, queryOrder())
		if err != nil {
			return err
		}
		return printNodes("descendants", nodes)
	},
}

var leafsCmd = &cobra.Command{
	Use:   "leafs <id>",
	Short: "List the leaves below a node",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, d, err := OpenEngine(true)
		if err != nil {
			return err
		}
		defer d.Close()

		n, err := ResolveNode(cmd.Context(), e, args[0])
		if err != nil {
			return err
		}
		nodes, err := e.Leafs(cmd.Context(), n, queryOrder())
		if err != nil {
			return err
		}
		return printNodes("leafs", nodes)
	},
}

var coverCmd = &cobra.Command{
	Use:   "cover <id>...",
	Short: "List the smallest subtree containing the given nodes and their ancestors",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, d, err := OpenEngine(true)
		if err != nil {
			return err
		}
		defer d.Close()

		ids := make([]int64, len(args))
		for i, a := range args {
			if ids[i], err = parseID(a); err != nil {
				return err
			}
		}
		nodes, err := e.MinimumCoveringSubtree(cmd.Context(), ids)
		if err != nil {
			return err
		}
		return printNodes("covering subtree", nodes)
	},
}

var rootsCmd = &cobra.Command{
	Use:   "roots",
	Short: "List every root node",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, d, err := OpenEngine(true)
		if err != nil {
			return err
		}
		defer d.Close()

		nodes, err := e.Roots(cmd.Context())
		if err != nil {
			return err
		}
		return printNodes("roots", nodes)
	},
}

func queryOrder() tree.Order {
	if showTree {
		return tree.OrderTree
	}
	return tree.OrderLevel
}

func init() {
	ancestorsCmd.Flags().BoolVar(&ancestorSelf, "self", false, "Include the node itself")
	descendantsCmd.Flags().BoolVar(&showTree, "tree", false, "Depth-first tree order")
	leafsCmd.Flags().BoolVar(&showTree, "tree", false, "Depth-first tree order")
	rootCmd.AddCommand(showCmd, ancestorsCmd, descendantsCmd, leafsCmd, coverCmd, rootsCmd)
}
