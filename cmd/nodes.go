package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	createParent string
	moveParent   string
	moveRoot     bool
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the node table and its indexes",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, d, err := OpenEngine(false)
		if err != nil {
			return err
		}
		defer d.Close()

		if err := d.EnsureSchema(cmd.Context()); err != nil {
			return err
		}
		fmt.Printf("Initialized %s in %s\n", d.Schema().Table, d.Path)
		return nil
	},
}

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a node, optionally under a parent",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, d, err := OpenEngine(true)
		if err != nil {
			return err
		}
		defer d.Close()

		var parentID *int64
		if createParent != "" {
			id, err := parseID(createParent)
			if err != nil {
				return err
			}
			parentID = &id
		}

		n, err := e.Create(cmd.Context(), parentID)
		if err != nil {
			return fmt.Errorf("creating node: %w", err)
		}
		if jsonOut {
			return printJSON(n)
		}
		fmt.Println("Created:")
		printNode(n)
		return nil
	},
}

var moveCmd = &cobra.Command{
	Use:   "move <id>",
	Short: "Give a node a new parent and update its subtree",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if (moveParent == "") == !moveRoot {
			return fmt.Errorf("exactly one of --parent or --root is required")
		}
		e, d, err := OpenEngine(true)
		if err != nil {
			return err
		}
		defer d.Close()

		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		var parentID *int64
		if !moveRoot {
			p, err := parseID(moveParent)
			if err != nil {
				return err
			}
			parentID = &p
		}

		n, err := e.Move(cmd.Context(), id, parentID)
		if err != nil {
			return fmt.Errorf("moving node %d: %w", id, err)
		}
		if jsonOut {
			return printJSON(n)
		}
		fmt.Println("Moved:")
		printNode(n)
		return nil
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a single node (children follow the configured delete behavior)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, d, err := OpenEngine(true)
		if err != nil {
			return err
		}
		defer d.Close()

		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		if err := e.Delete(cmd.Context(), id); err != nil {
			return fmt.Errorf("deleting node %d: %w", id, err)
		}
		if jsonOut {
			return printJSON(map[string]int64{"deleted": id})
		}
		fmt.Printf("Deleted %d\n", id)
		return nil
	},
}

var deleteBranchCmd = &cobra.Command{
	Use:   "delete-branch <id>",
	Short: "Delete a node and all of its descendants, deepest first",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, d, err := OpenEngine(true)
		if err != nil {
			return err
		}
		defer d.Close()

		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		removed, err := e.DeleteBranch(cmd.Context(), id)
		if err != nil {
			return fmt.Errorf("deleting branch %d: %w", id, err)
		}
		if jsonOut {
			return printJSON(map[string]int{"removed": removed})
		}
		fmt.Printf("Deleted branch %d (%d node(s))\n", id, removed)
		return nil
	},
}

var recalcCmd = &cobra.Command{
	Use:   "recalc <id>",
	Short: "Recompute a node's derived fields",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, d, err := OpenEngine(true)
		if err != nil {
			return err
		}
		defer d.Close()

		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		n, err := e.Recalc(cmd.Context(), id)
		if err != nil {
			return fmt.Errorf("recalculating node %d: %w", id, err)
		}
		if jsonOut {
			return printJSON(n)
		}
		printNode(n)
		return nil
	},
}

var repairCmd = &cobra.Command{
	Use:   "repair [id]",
	Short: "Recompute a subtree (or every tree) top-down from the parent links",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, d, err := OpenEngine(true)
		if err != nil {
			return err
		}
		defer d.Close()

		var written int
		if len(args) == 1 {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			written, err = e.Repair(cmd.Context(), id)
			if err != nil {
				return fmt.Errorf("repairing %d: %w", id, err)
			}
		} else {
			written, err = e.RepairAll(cmd.Context())
			if err != nil {
				return fmt.Errorf("repairing: %w", err)
			}
		}
		if jsonOut {
			return printJSON(map[string]int{"rewritten": written})
		}
		fmt.Printf("Rewrote %d node(s)\n", written)
		return nil
	},
}

func init() {
	createCmd.Flags().StringVar(&createParent, "parent", "", "Parent node ID (omit for a root)")
	moveCmd.Flags().StringVar(&moveParent, "parent", "", "New parent node ID")
	moveCmd.Flags().BoolVar(&moveRoot, "root", false, "Make the node a root")
	rootCmd.AddCommand(initCmd, createCmd, moveCmd, deleteCmd, deleteBranchCmd, recalcCmd, repairCmd)
}
