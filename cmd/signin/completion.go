package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/jakopako/signin/internal/config"
	"github.com/spf13/cobra"
)

type ShellType string

const (
	BASH ShellType = "bash"
	ZSH  ShellType = "zsh"
	FISH ShellType = "fish"
)

var shellTypes = []string{string(BASH), string(ZSH), string(FISH)}

type CompletionCmd struct {
	Shell ShellType `short:"s" help:"The shell that you want to create the autocompletion file for." required:"" enum:"bash,zsh,fish"`
}

func (cc *CompletionCmd) Run() error {
	root := completionCommand(newParser().Model.Node)
	switch cc.Shell {
	case BASH:
		return root.GenBashCompletionV2(os.Stdout, true)
	case ZSH:
		return root.GenZshCompletion(os.Stdout)
	case FISH:
		return root.GenFishCompletion(os.Stdout, true)
	default:
		// should not happen due to enum constraint
		return fmt.Errorf("shell type not supported: %s. Must be one of [%s].", cc.Shell, strings.Join(shellTypes, ", "))
	}
}

func newParser() *kong.Kong {
	return kong.Must(&cli{}, kong.Name(name))
}

// isCompletionRequest reports whether the shell asks for completions of
// the remaining arguments.
func isCompletionRequest(args []string) bool {
	return len(args) > 0 && (args[0] == cobra.ShellCompRequestCmd || args[0] == cobra.ShellCompNoDescRequestCmd)
}

// completionCommand mirrors the kong command tree so cobra can generate
// the shell scripts and answer their completion requests.
func completionCommand(n *kong.Node) *cobra.Command {
	c := &cobra.Command{
		Use:   n.Name,
		Short: n.Help,
		Run:   func(*cobra.Command, []string) {},
	}
	c.CompletionOptions.DisableDefaultCmd = true

	flags := c.Flags()
	if n.Parent == nil {
		flags = c.PersistentFlags()
	}
	for _, f := range n.Flags {
		if f.Hidden || f.Name == "help" {
			continue
		}
		short := ""
		if f.Short != 0 {
			short = string(f.Short)
		}
		if f.IsBool() {
			flags.BoolP(f.Name, short, false, f.Help)
			continue
		}
		flags.StringP(f.Name, short, f.Default, f.Help)
		switch {
		case f.Enum != "":
			c.RegisterFlagCompletionFunc(f.Name, cobra.FixedCompletions(f.EnumSlice(), cobra.ShellCompDirectiveNoFileComp))
		case f.Name == "name" || f.Name == "site":
			c.RegisterFlagCompletionFunc(f.Name, completeSiteIDs)
		}
	}

	for _, child := range n.Children {
		if child.Type == kong.CommandNode && !child.Hidden {
			c.AddCommand(completionCommand(child))
		}
	}
	return c
}

func completeSiteIDs(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	path, _ := cmd.Flags().GetString("config")
	c, err := config.NewConfig(path)
	if err != nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	var ids []string
	for _, d := range c.Sites {
		if strings.HasPrefix(d.ID, toComplete) {
			ids = append(ids, d.ID)
		}
	}
	return ids, cobra.ShellCompDirectiveNoFileComp
}
