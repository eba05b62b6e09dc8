package flags

import (
	"fmt"
	"reflect"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Defines a command-line Flag.
type Flag[T any] struct {
	// Whether this flag is inherited by subcommands.
	Persistent bool

	Name string

	// Single-letter shorthand. Zero means none.
	ShortName    rune
	DefaultValue T
	UsageMsg     string

	Required bool
	Hidden   bool

	// If non-empty, the flag is marked deprecated with this message.
	DeprecationMsg string

	// If non-empty, then command-line completions will be restricted to
	// filenames having any of the given extensions.
	FilenameExts []string

	// Whether command-line completions should be restricted to directory names.
	DirNames bool
}

// Adds the given string-valued flag to the given command.
func AddStringFlag(
	cmd *cobra.Command,
	f Flag[string],
) *string {
	flags := f.getFlagSet(cmd)
	return addFlag(flags, flags.StringP, f)
}

// Adds the given string-slice-valued flag to the given command.
func AddStringSliceFlag(
	cmd *cobra.Command,
	f Flag[[]string],
) *[]string {
	flags := f.getFlagSet(cmd)
	return addFlag(flags, flags.StringSliceP, f)
}

// Returns the FlagSet corresponding to this flag.
func (f Flag[T]) getFlagSet(cmd *cobra.Command) *pflag.FlagSet {
	if f.Persistent {
		return cmd.PersistentFlags()
	}
	return cmd.Flags()
}

// Adds the given flag to the given command.
func addFlag[T any](
	flagSet *pflag.FlagSet,
	defineFlag func(name string, shorthand string, value T, usage string) *T,
	f Flag[T],
) *T {
	if reflect.TypeFor[T]().Kind() == reflect.Slice {
		f.UsageMsg = fmt.Sprintf("%s. Can be specified multiple times", f.UsageMsg)
	}

	shortName := ""
	if f.ShortName != 0 {
		shortName = string(f.ShortName)
	}
	result := defineFlag(f.Name, shortName, f.DefaultValue, f.UsageMsg)

	if f.Required {
		cobra.MarkFlagRequired(flagSet, f.Name)
	}
	if f.Hidden {
		flagSet.MarkHidden(f.Name)
	}
	if f.DeprecationMsg != "" {
		flagSet.MarkDeprecated(f.Name, f.DeprecationMsg)
	}

	if len(f.FilenameExts) > 0 {
		cobra.MarkFlagFilename(flagSet, f.Name, f.FilenameExts...)
	}
	if f.DirNames {
		cobra.MarkFlagDirname(flagSet, f.Name)
	}

	return result
}
