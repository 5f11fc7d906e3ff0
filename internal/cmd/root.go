// Package cmd holds the mdiminfo command line.
package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v2"

	"github.com/batchatco/go-native-mdim/mdim"
	"github.com/batchatco/go-native-mdim/mdim/api"
)

var (
	format    string
	showAll   bool
	timestamp uint64
	stats     bool
	logLevel  int
)

// RootCmd is the main command.
var RootCmd = &cobra.Command{
	Use:   "mdiminfo <uri>",
	Short: "Describe a multidimensional store.",
	Long: `Lists the groups, dimensions, arrays and attributes of a store,
          recursively, as JSON or YAML.`,
	Args: cobra.ExactArgs(1),
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if format != "json" && format != "yaml" {
			return fmt.Errorf("unknown format %q", format)
		}
		mdim.SetLogLevel(logLevel)
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return Info(cmd.OutOrStdout(), args[0])
	},
}

func init() {
	RootCmd.PersistentFlags().StringVar(&format, "format", "json", "output format, json or yaml")
	RootCmd.PersistentFlags().BoolVar(&showAll, "show-all", false, "also list hidden objects and attributes")
	RootCmd.PersistentFlags().Uint64Var(&timestamp, "timestamp", 0, "read the store as of this timestamp, 0 for the latest")
	RootCmd.PersistentFlags().BoolVar(&stats, "stats", false, "log engine statistics after each read")
	RootCmd.PersistentFlags().IntVar(&logLevel, "log-level", 2, "0 fatal, 1 error, 2 warn, 3 info")
}

func openOptions() api.Options {
	opts := api.Options{}
	if timestamp != 0 {
		opts[api.OptTimestamp] = fmt.Sprint(timestamp)
	}
	if stats {
		opts[api.OptStats] = "YES"
	}
	return opts
}

// Info writes the description of the store at uri to w.
func Info(w io.Writer, uri string) error {
	g, err := mdim.Open(uri, openOptions())
	if err != nil {
		return err
	}
	defer g.Close()
	var listOpts api.Options
	if showAll {
		listOpts = api.Options{api.OptShowAll: "YES"}
	}
	info, err := describeGroup(g, listOpts)
	if err != nil {
		return err
	}
	var out []byte
	switch format {
	case "yaml":
		out, err = yaml.Marshal(info)
	default:
		out, err = json.MarshalIndent(info, "", "  ")
	}
	if err != nil {
		return err
	}
	if format == "json" {
		out = append(out, '\n')
	}
	_, err = w.Write(out)
	return err
}
