package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	gocmd "github.com/goliatone/go-command"
	dispatchcmd "github.com/goliatone/go-dispatcher/command"
	"github.com/goliatone/go-dispatcher/core"
	dispatchqry "github.com/goliatone/go-dispatcher/query"
	sqlstore "github.com/goliatone/go-dispatcher/store/sql"
	"github.com/spf13/cobra"
)

func newRootCommand(version string, commit string) *cobra.Command {
	opts := &runtimeOptions{}
	root := &cobra.Command{
		Use:           "dispatcher-demo",
		Short:         "Run services through a descriptor-driven dispatcher",
		Version:       fmt.Sprintf("%s (commit: %s)", version, commit),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.driver, "driver", sqlstore.DriverSQLite, "database driver (sqlite3 or postgres)")
	flags.StringVar(&opts.dsn, "dsn", "file:dispatcher-demo?mode=memory&cache=shared&_foreign_keys=on", "database DSN")
	flags.StringVar(&opts.catalog, "catalog", "", "directory of YAML descriptor catalogs")
	flags.StringVar(&opts.profile, "profile", "", "dispatcher profile (production, development, test)")
	flags.StringVar(&opts.logLevel, "log-level", "info", "log level")

	root.AddCommand(newRunCommand(opts))
	root.AddCommand(newRegisterCommand(opts))
	root.AddCommand(newServicesCommand(opts))
	root.AddCommand(newCallsCommand(opts))
	return root
}

func newRunCommand(opts *runtimeOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run <service> [key=value...]",
		Short: "Dispatch a service synchronously and print its result",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			params, err := parseParams(args[1:])
			if err != nil {
				return err
			}
			rt, err := openRuntime(cmd.Context(), *opts)
			if err != nil {
				return err
			}
			defer rt.Close()

			collector := gocmd.NewResult[core.Result]()
			ctx := gocmd.ContextWithResult(cmd.Context(), collector)
			runErr := rt.facade.Commands().RunService.Execute(ctx, dispatchcmd.RunServiceMessage{
				Service: args[0],
				Params:  params,
			})
			result, _ := collector.Load()
			if err := printJSON(cmd.OutOrStdout(), result); err != nil {
				return err
			}
			return runErr
		},
	}
}

func newRegisterCommand(opts *runtimeOptions) *cobra.Command {
	var (
		engine      string
		location    string
		invoke      string
		entity      string
		persist     bool
		transaction bool
		callbacks   []string
		description string
	)
	cmd := &cobra.Command{
		Use:   "register <service>",
		Short: "Save a descriptor into the database catalog",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime(cmd.Context(), *opts)
			if err != nil {
				return err
			}
			defer rt.Close()

			desc := core.NewDescriptor(args[0], engine,
				core.WithTarget(location, invoke),
				core.WithEntity(entity),
				core.WithPersist(persist),
				core.WithTransaction(transaction),
				core.WithCallbacks(callbacks...),
				core.WithDescription(description),
			)
			msg := dispatchcmd.RegisterServiceMessage{Descriptor: desc}
			if err := msg.Validate(); err != nil {
				return err
			}
			saved, err := rt.stores.DescriptorStore().Save(cmd.Context(), desc)
			if err != nil {
				return err
			}
			if err := rt.catalog.Invalidate(cmd.Context()); err != nil {
				return err
			}
			if err := rt.facade.Commands().RegisterService.Execute(cmd.Context(), msg); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), saved)
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&engine, "engine", core.EngineStandard, "engine name")
	flags.StringVar(&location, "location", "", "handler location")
	flags.StringVar(&invoke, "invoke", "", "invoke target or entity operation")
	flags.StringVar(&entity, "entity", "", "entity name for entity-auto services")
	flags.BoolVar(&persist, "persist", false, "service writes through the persistence provider")
	flags.BoolVar(&transaction, "transaction", false, "wrap persisted calls in a transaction")
	flags.StringSliceVar(&callbacks, "callback", nil, "callback identifiers")
	flags.StringVar(&description, "description", "", "descriptor description")
	return cmd
}

func newServicesCommand(opts *runtimeOptions) *cobra.Command {
	var engine string
	cmd := &cobra.Command{
		Use:   "services",
		Short: "List registered services",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := openRuntime(cmd.Context(), *opts)
			if err != nil {
				return err
			}
			defer rt.Close()

			services, err := rt.facade.Queries().ListServices.Query(cmd.Context(), dispatchqry.ListServicesMessage{Engine: engine})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), services)
		},
	}
	cmd.Flags().StringVar(&engine, "engine", "", "only list services bound to this engine")
	return cmd
}

func newCallsCommand(opts *runtimeOptions) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "calls [service]",
		Short: "Show the dispatch call log",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime(cmd.Context(), *opts)
			if err != nil {
				return err
			}
			defer rt.Close()

			msg := dispatchqry.ListCallsMessage{Limit: limit}
			if len(args) == 1 {
				msg.Service = args[0]
			}
			if err := msg.Validate(); err != nil {
				return err
			}
			calls, err := rt.facade.Queries().ListCalls.Query(cmd.Context(), msg)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), calls)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum entries to show")
	return cmd
}

// parseParams turns key=value pairs into params. Values that parse as JSON
// scalars, arrays or objects keep their decoded type.
func parseParams(pairs []string) (core.Params, error) {
	params := core.Params{}
	for _, pair := range pairs {
		key, raw, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("dispatcher-demo: expected key=value, got %q", pair)
		}
		params[key] = parseValue(raw)
	}
	return params, nil
}

func parseValue(raw string) any {
	if _, err := strconv.ParseFloat(raw, 64); err == nil || strings.HasPrefix(raw, "{") || strings.HasPrefix(raw, "[") || raw == "true" || raw == "false" {
		var decoded any
		if err := json.Unmarshal([]byte(raw), &decoded); err == nil {
			return decoded
		}
	}
	return raw
}

func printJSON(out io.Writer, value any) error {
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(value)
}
