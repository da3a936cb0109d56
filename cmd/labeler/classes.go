package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/menta2k/yolo-labeler/pkg/workspace"
)

var classesDir string

var classesCmd = &cobra.Command{
	Use:   "classes",
	Short: "List and edit the classes of a folder",
	Long: `Prints classes.txt as "id: name" lines. The subcommands edit the list;
deleting or reordering classes rewrites every annotation file of the folder
so boxes keep their class.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ws, err := classesWorkspace()
		if err != nil {
			return err
		}
		for _, line := range ws.Classes().Entries() {
			fmt.Println(line)
		}
		return nil
	},
}

var classAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Append a class",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ws, err := classesWorkspace()
		if err != nil {
			return err
		}
		id, err := ws.AddClass(args[0])
		if err != nil {
			return err
		}
		fmt.Printf("%d: %s\n", id, ws.Classes().Name(id))
		return nil
	},
}

var classRenameCmd = &cobra.Command{
	Use:   "rename <id> <name>",
	Short: "Rename a class",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClassID(args[0], func(ws *workspace.Workspace, id int) error {
			return ws.RenameClass(id, args[1])
		})
	},
}

var classDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a class and every box of that class",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClassID(args[0], func(ws *workspace.Workspace, id int) error {
			return ws.DeleteClass(id)
		})
	},
}

var classUpCmd = &cobra.Command{
	Use:   "up <id>",
	Short: "Swap a class with the one before it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClassID(args[0], func(ws *workspace.Workspace, id int) error {
			return ws.MoveClassUp(id)
		})
	},
}

var classDownCmd = &cobra.Command{
	Use:   "down <id>",
	Short: "Swap a class with the one after it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClassID(args[0], func(ws *workspace.Workspace, id int) error {
			return ws.MoveClassDown(id)
		})
	},
}

func init() {
	classesCmd.PersistentFlags().StringVarP(&classesDir, "dir", "d", "", "image folder (default dataset.dir or .)")
	classesCmd.AddCommand(classAddCmd, classRenameCmd, classDeleteCmd, classUpCmd, classDownCmd)
}

func classesWorkspace() (*workspace.Workspace, error) {
	dir := classesDir
	if dir == "" {
		dir = cfg.Dataset.Dir
	}
	if dir == "" {
		dir = "."
	}
	return openWorkspace(dir, nil)
}

func withClassID(arg string, fn func(ws *workspace.Workspace, id int) error) error {
	id, err := strconv.Atoi(arg)
	if err != nil {
		return fmt.Errorf("invalid class id %q: %w", arg, err)
	}
	ws, err := classesWorkspace()
	if err != nil {
		return err
	}
	if err := fn(ws, id); err != nil {
		return err
	}
	for _, line := range ws.Classes().Entries() {
		fmt.Println(line)
	}
	return nil
}
