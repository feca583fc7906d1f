package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/teilomillet/relcheck"
	"github.com/teilomillet/relcheck/registry"
)

func newModelsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "models",
		Short: "Manage registered prompt models",
	}
	cmd.AddCommand(
		newModelsRegisterCmd(a),
		&cobra.Command{
			Use:   "list",
			Short: "List registered models",
			Args:  cobra.NoArgs,
			RunE: a.run(func(cmd *cobra.Command, _ []string, sys *relcheck.System) error {
				models, err := sys.Registry.List(cmd.Context())
				if err != nil {
					return err
				}
				writeModels(cmd.OutOrStdout(), "Registered models", models)
				return nil
			}),
		},
		&cobra.Command{
			Use:   "show <name> <version>",
			Short: "Print a model as JSON",
			Args:  cobra.ExactArgs(2),
			RunE: a.run(func(cmd *cobra.Command, args []string, sys *relcheck.System) error {
				m, err := sys.Registry.MustGet(cmd.Context(), args[0], args[1])
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), m)
			}),
		},
		&cobra.Command{
			Use:   "versions <name>",
			Short: "List the versions of a model, oldest first",
			Args:  cobra.ExactArgs(1),
			RunE: a.run(func(cmd *cobra.Command, args []string, sys *relcheck.System) error {
				models, err := sys.Registry.Versions(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				writeModels(cmd.OutOrStdout(), "Versions of "+args[0], models)
				return nil
			}),
		},
		&cobra.Command{
			Use:   "latest <name>",
			Short: "Show the highest version of a model",
			Args:  cobra.ExactArgs(1),
			RunE: a.run(func(cmd *cobra.Command, args []string, sys *relcheck.System) error {
				m, err := sys.Registry.Latest(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return writeOptionalModel(cmd.OutOrStdout(), args[0], m)
			}),
		},
		&cobra.Command{
			Use:   "best <name>",
			Short: "Show the version of a model with the highest F1",
			Args:  cobra.ExactArgs(1),
			RunE: a.run(func(cmd *cobra.Command, args []string, sys *relcheck.System) error {
				m, err := sys.Registry.BestPerforming(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return writeOptionalModel(cmd.OutOrStdout(), args[0], m)
			}),
		},
		&cobra.Command{
			Use:   "tags <name> <version> [tag...]",
			Short: "Replace the tags of a model version",
			Args:  cobra.MinimumNArgs(2),
			RunE: a.run(func(cmd *cobra.Command, args []string, sys *relcheck.System) error {
				ok, err := sys.Registry.UpdateTags(cmd.Context(), args[0], args[1], args[2:])
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("%w: %s:%s", registry.ErrModelNotFound, args[0], args[1])
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Tags of %s:%s set to [%s]\n", args[0], args[1], strings.Join(args[2:], ", "))
				return nil
			}),
		},
		&cobra.Command{
			Use:   "search <query>",
			Short: "Search names, descriptions and tags",
			Args:  cobra.ExactArgs(1),
			RunE: a.run(func(cmd *cobra.Command, args []string, sys *relcheck.System) error {
				models, err := sys.Registry.Search(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				writeModels(cmd.OutOrStdout(), fmt.Sprintf("Models matching %q", args[0]), models)
				return nil
			}),
		},
		&cobra.Command{
			Use:   "delete <name> <version>",
			Short: "Delete a model version",
			Args:  cobra.ExactArgs(2),
			RunE: a.run(func(cmd *cobra.Command, args []string, sys *relcheck.System) error {
				ok, err := sys.Registry.Delete(cmd.Context(), args[0], args[1])
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("%w: %s:%s", registry.ErrModelNotFound, args[0], args[1])
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Model %s:%s deleted\n", args[0], args[1])
				return nil
			}),
		},
		&cobra.Command{
			Use:   "schema",
			Short: "Print the JSON schema of a model configuration file",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				schema, err := registry.ConfigSchema()
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(schema))
				return nil
			},
		},
	)
	return cmd
}

func newModelsRegisterCmd(a *app) *cobra.Command {
	var (
		configPath  string
		description string
		tags        []string
	)
	cmd := &cobra.Command{
		Use:   "register <name> <version>",
		Short: "Register a model from a YAML or JSON model configuration",
		Args:  cobra.ExactArgs(2),
		RunE: a.run(func(cmd *cobra.Command, args []string, sys *relcheck.System) error {
			cfg, err := registry.LoadModelConfig(configPath)
			if err != nil {
				return err
			}
			m, err := registry.NewMetadataFromConfig(args[0], args[1], description, cfg, tags)
			if err != nil {
				return err
			}
			if err := sys.Registry.Register(cmd.Context(), m); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Model %s registered successfully\n", m.Ref())
			return nil
		}),
	}
	cmd.Flags().StringVar(&configPath, "model-config", "", "Model configuration file (see 'relcheck models schema')")
	cmd.Flags().StringVar(&description, "description", "", "Model description")
	cmd.Flags().StringSliceVar(&tags, "tags", nil, "Comma-separated tags")
	_ = cmd.MarkFlagRequired("model-config")
	return cmd
}

func writeModels(w io.Writer, title string, models []registry.ModelMetadata) {
	if len(models) == 0 {
		fmt.Fprintf(w, "%s: none\n", title)
		return
	}
	fmt.Fprintf(w, "%s:\n", title)
	for _, m := range models {
		fmt.Fprintf(w, "  %s  F1=%.3f", m.Ref(), m.Performance.F1)
		if len(m.Tags) > 0 {
			fmt.Fprintf(w, "  [%s]", strings.Join(m.Tags, ", "))
		}
		if m.Description != "" {
			fmt.Fprintf(w, "  %s", m.Description)
		}
		fmt.Fprintln(w)
	}
}

func writeOptionalModel(w io.Writer, name string, m *registry.ModelMetadata) error {
	if m == nil {
		return fmt.Errorf("%w: %s", registry.ErrModelNotFound, name)
	}
	writeModels(w, "Model", []registry.ModelMetadata{*m})
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
