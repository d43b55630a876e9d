package main

import (
	"fmt"

	"omnia/internal/app"
	"omnia/internal/catalog"
	"omnia/internal/jsonval"

	"github.com/spf13/cobra"
)

// co command
var coCmd = &cobra.Command{
	Use:   "co",
	Short: "Manage collections",
}

// readNotesFlags returns the notes given by --notes or --notes-file, or nil.
func readNotesFlags(cmd *cobra.Command) (*jsonval.Value, error) {
	inline, _ := cmd.Flags().GetString("notes")
	file, _ := cmd.Flags().GetString("notes-file")
	switch {
	case inline != "" && file != "":
		return nil, fmt.Errorf("%w: --notes and --notes-file are mutually exclusive", catalog.ErrValidation)
	case inline != "":
		v, err := app.ParseNotes([]byte(inline))
		return &v, err
	case file != "":
		v, err := app.ReadNotesFile(file)
		return &v, err
	default:
		return nil, nil
	}
}

func readProviderFlags(cmd *cobra.Command) *catalog.Provider {
	name, _ := cmd.Flags().GetString("provider")
	url, _ := cmd.Flags().GetString("provider-url")
	if name == "" && url == "" {
		return nil
	}
	return &catalog.Provider{Name: name, URL: url}
}

var coAddCmd = &cobra.Command{
	Use:   "add NAME",
	Short: "Create a collection",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var opts []catalog.CollectionOption
		if d, _ := cmd.Flags().GetString("description"); d != "" {
			opts = append(opts, catalog.WithDescription(d))
		}
		if tags, _ := cmd.Flags().GetStringSlice("tag"); len(tags) > 0 {
			opts = append(opts, catalog.WithTags(tags...))
		}
		notes, err := readNotesFlags(cmd)
		if err != nil {
			return err
		}
		if notes != nil {
			opts = append(opts, catalog.WithNotes(*notes))
		}
		if p := readProviderFlags(cmd); p != nil {
			opts = append(opts, catalog.WithProvider(*p))
		}

		a, err := newApp(cmd, "co add")
		if err != nil {
			return err
		}
		defer closeApp(cmd, a)

		c, err := a.CreateCollection(cmd.Context(), args[0], opts...)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Created collection %s (%s)\n", c.Name(), c.UniqueKey())
		return nil
	},
}

var coEdCmd = &cobra.Command{
	Use:   "ed NAME",
	Short: "Edit a collection's description, tags, notes or provider",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var edit catalog.CollectionEdit
		if cmd.Flags().Changed("description") {
			d, _ := cmd.Flags().GetString("description")
			edit.Description = &d
		}
		if cmd.Flags().Changed("tag") {
			tags, _ := cmd.Flags().GetStringSlice("tag")
			edit.Tags = append([]string{}, tags...)
		}
		notes, err := readNotesFlags(cmd)
		if err != nil {
			return err
		}
		edit.Notes = notes
		edit.Provider = readProviderFlags(cmd)

		a, err := newApp(cmd, "co ed")
		if err != nil {
			return err
		}
		defer closeApp(cmd, a)

		changed, err := a.EditCollection(cmd.Context(), args[0], edit)
		if err != nil {
			return err
		}
		if !changed {
			fmt.Fprintf(cmd.OutOrStdout(), "Collection %s unchanged\n", args[0])
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Updated collection %s\n", args[0])
		return nil
	},
}

var coMvCmd = &cobra.Command{
	Use:   "mv OLD NEW",
	Short: "Rename a collection",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "co mv")
		if err != nil {
			return err
		}
		defer closeApp(cmd, a)

		if err := a.RenameCollection(cmd.Context(), args[0], args[1]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Renamed collection %s to %s\n", args[0], args[1])
		return nil
	},
}

var coDelCmd = &cobra.Command{
	Use:   "del NAME",
	Short: "Delete a collection (files keep their records)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "co del")
		if err != nil {
			return err
		}
		defer closeApp(cmd, a)

		if err := a.DeleteCollection(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted collection %s\n", args[0])
		return nil
	},
}

// reg command
var regCmd = &cobra.Command{
	Use:   "reg -c COLLECTION -s PATTERN [-s PATTERN...]",
	Short: "Register files into a collection",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		collection, _ := cmd.Flags().GetString("collection")
		patterns, _ := cmd.Flags().GetStringArray("source")
		skipMetadata, _ := cmd.Flags().GetBool("skip-metadata")
		force, _ := cmd.Flags().GetBool("force")
		if len(patterns) == 0 {
			return fmt.Errorf("%w: at least one --source is required", catalog.ErrValidation)
		}

		a, err := newApp(cmd, "reg")
		if err != nil {
			return err
		}
		defer closeApp(cmd, a)

		results, err := a.Register(cmd.Context(), collection, patterns, catalog.RegisterOptions{
			ComputeMetadata: !skipMetadata,
			Force:           force,
		})
		if err != nil {
			return err
		}
		printRegisterResults(cmd.OutOrStdout(), results, verbose)
		if failed := catalog.Summarize(results)[catalog.OutcomeFailed]; failed > 0 {
			return fmt.Errorf("%d file(s) failed to register", failed)
		}
		return nil
	},
}

// ls command
var lsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List collections, a collection's files, or a file's records",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		collection, _ := cmd.Flags().GetString("collection")
		path, _ := cmd.Flags().GetString("describe")
		long, _ := cmd.Flags().GetBool("long")
		if collection != "" && path != "" {
			return fmt.Errorf("%w: -c and -d are mutually exclusive", catalog.ErrValidation)
		}

		a, err := newApp(cmd, "ls")
		if err != nil {
			return err
		}
		defer closeApp(cmd, a)

		out := cmd.OutOrStdout()
		switch {
		case collection != "":
			c, files, err := a.CollectionDetail(cmd.Context(), collection)
			if err != nil {
				return err
			}
			printCollectionDetail(out, c, files, long)
		case path != "":
			details, err := a.DescribeFile(cmd.Context(), path)
			if err != nil {
				return err
			}
			if len(details) == 0 {
				return fmt.Errorf("%s is not registered: %w", path, catalog.ErrNotFound)
			}
			printFileDetails(out, details)
		default:
			list, err := a.ListCollections(cmd.Context())
			if err != nil {
				return err
			}
			if len(list) == 0 {
				fmt.Fprintln(out, "No collections.")
				return nil
			}
			printCollections(out, list)
		}
		return nil
	},
}

// dataset command
var datasetCmd = &cobra.Command{
	Use:   "dataset",
	Short: "Export collection contents",
}

var datasetGetCmd = &cobra.Command{
	Use:   "get NAME",
	Short: "Write the paths of a collection's files to a text file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		output, _ := cmd.Flags().GetString("output")

		a, err := newApp(cmd, "dataset get")
		if err != nil {
			return err
		}
		defer closeApp(cmd, a)

		written, n, err := a.ExportDataset(cmd.Context(), args[0], output)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d path(s) to %s\n", n, written)
		return nil
	},
}

// query command
var queryCmd = &cobra.Command{
	Use:   "query KIND",
	Short: "Query documents of one kind (collections, file_objects, operations)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		fields, _ := cmd.Flags().GetStringArray("filter")
		jsonTerms, _ := cmd.Flags().GetStringArray("json")
		file, _ := cmd.Flags().GetString("file")
		caseSensitive, _ := cmd.Flags().GetBool("case-sensitive")

		var filter catalog.Filter
		var err error
		if file != "" {
			if len(fields) > 0 || len(jsonTerms) > 0 {
				return fmt.Errorf("%w: --file cannot be combined with --filter or --json", catalog.ErrValidation)
			}
			filter, err = app.ReadFilterFile(file)
		} else {
			filter, err = app.ParseFilterFlags(fields, jsonTerms)
		}
		if err != nil {
			return err
		}

		a, err := newApp(cmd, "query")
		if err != nil {
			return err
		}
		defer closeApp(cmd, a)

		docs, err := a.Query(cmd.Context(), args[0], filter, caseSensitive)
		if err != nil {
			return err
		}
		return printDocuments(cmd.OutOrStdout(), docs)
	},
}

func addEntityFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("description", "D", "", "Description (at most 200 characters)")
	cmd.Flags().StringSliceP("tag", "t", nil, "Tag (repeatable or comma separated)")
	cmd.Flags().String("notes", "", "Notes as JSON (comments allowed)")
	cmd.Flags().String("notes-file", "", "Read notes from a JSON or JSONC file")
	cmd.Flags().String("provider", "", "Name of the data provider")
	cmd.Flags().String("provider-url", "", "URL of the data provider")
}

func init() {
	coCmd.AddCommand(coAddCmd)
	addEntityFlags(coAddCmd)
	coCmd.AddCommand(coEdCmd)
	addEntityFlags(coEdCmd)
	coCmd.AddCommand(coMvCmd)
	coCmd.AddCommand(coDelCmd)
	rootCmd.AddCommand(coCmd)

	regCmd.Flags().StringP("collection", "c", "", "Collection to register into")
	regCmd.Flags().StringArrayP("source", "s", nil, "File, directory or glob pattern (repeatable)")
	regCmd.Flags().Bool("skip-metadata", false, "Do not compute checksum, size and MIME type")
	regCmd.Flags().BoolP("force", "f", false, "Recompute metadata for files already in the collection")
	_ = regCmd.MarkFlagRequired("collection")
	rootCmd.AddCommand(regCmd)

	lsCmd.Flags().StringP("collection", "c", "", "Show the files of a collection")
	lsCmd.Flags().StringP("describe", "d", "", "Show the records registered at a path")
	lsCmd.Flags().BoolP("long", "l", false, "With -c, list every file path")
	rootCmd.AddCommand(lsCmd)

	datasetGetCmd.Flags().StringP("output", "o", "", "Output file (default dataset_paths_from_<name>.txt)")
	datasetCmd.AddCommand(datasetGetCmd)
	rootCmd.AddCommand(datasetCmd)

	queryCmd.Flags().StringArrayP("filter", "f", nil, "field=value, or field:=literal for true, false, null or a number (repeat a field to match any of several values)")
	queryCmd.Flags().StringArray("json", nil, "field.key=substring against a JSON field")
	queryCmd.Flags().String("file", "", "Read the filter from a YAML or JSON file")
	queryCmd.Flags().Bool("case-sensitive", false, "Compare strings case-sensitively")
	rootCmd.AddCommand(queryCmd)
}
