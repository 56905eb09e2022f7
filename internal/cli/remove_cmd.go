package cli

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

func newRemoveCmd(app *App) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "remove <id>...",
		Short: "Stop tracking one or more markets",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reader := bufio.NewReader(os.Stdin)
			for _, arg := range args {
				id, err := strconv.ParseInt(arg, 10, 64)
				if err != nil {
					return fmt.Errorf("invalid id %q", arg)
				}
				rec, err := app.Store.Get(id)
				if err != nil {
					return err
				}
				if !yes {
					fmt.Printf("Are you sure you want to remove %d: %q (y/N)? ", id, rec.Question)
					line, _ := reader.ReadString('\n')
					if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(line)), "y") {
						continue
					}
				}
				if err := app.Store.Remove(id); err != nil {
					return err
				}
				fmt.Printf("%d removed from db\n", id)
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip the confirmation prompt")
	return cmd
}
