// main.go
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"codepad/internal/config"
	"codepad/internal/logging"
	"codepad/internal/store"
	"codepad/internal/template"
	"codepad/internal/tree"
)

var (
	cfg *config.Config

	workspaceFlag string
	outputFlag    string
	limitFlag     int
	templateFlag  string
	maxSizeFlag   int64

	rootCmd = &cobra.Command{
		Use:           "codepad",
		Short:         "Workspace synchronization and code suggestion backend",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if workspaceFlag != "" {
				cfg.Workspace.ID = workspaceFlag
			}
			if cmd.Name() != "serve" {
				logging.InitNop()
				return nil
			}
			return logging.Init(logging.Config{
				Level:      cfg.Logging.Level,
				Format:     cfg.Logging.Format,
				OutputPath: cfg.Logging.Output,
			})
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			logging.Sync()
		},
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Serve websocket RPC, the suggestion endpoint and metrics",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}

	scaffoldCmd = &cobra.Command{
		Use:   "scaffold <template>",
		Short: "Print the starter tree of a template as JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  runScaffold,
	}

	templatesCmd = &cobra.Command{
		Use:   "templates",
		Short: "List configured templates",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			for _, name := range template.NewRegistry(cfg.TemplateDirs()).Names() {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
		},
	}

	exportCmd = &cobra.Command{
		Use:   "export [workspace]",
		Short: "Write the latest snapshot of a workspace as JSON",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runExport,
	}

	importCmd = &cobra.Command{
		Use:   "import <workspace> <file>",
		Short: "Store a tree document as the latest snapshot of a workspace",
		Args:  cobra.ExactArgs(2),
		RunE:  runImport,
	}

	workspacesCmd = &cobra.Command{
		Use:   "workspaces",
		Short: "List, create and delete workspaces",
		Args:  cobra.NoArgs,
		RunE:  runWorkspacesList,
	}

	workspacesCreateCmd = &cobra.Command{
		Use:   "create <name>",
		Short: "Scaffold a new workspace from a template",
		Args:  cobra.ExactArgs(1),
		RunE:  runWorkspacesCreate,
	}

	workspacesDeleteCmd = &cobra.Command{
		Use:   "delete <workspace>",
		Short: "Delete a workspace and all of its revisions",
		Args:  cobra.ExactArgs(1),
		RunE:  runWorkspacesDelete,
	}

	historyCmd = &cobra.Command{
		Use:   "history [workspace]",
		Short: "List stored revisions of a workspace",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runHistory,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&workspaceFlag, "workspace", "w", "", "workspace id (overrides config)")
	scaffoldCmd.Flags().Int64Var(&maxSizeFlag, "max-size", template.DefaultMaxFileSize, "skip template files larger than this many bytes")
	exportCmd.Flags().StringVarP(&outputFlag, "output", "o", "", "write to file instead of stdout")
	historyCmd.Flags().IntVarP(&limitFlag, "limit", "n", 20, "number of revisions to show")

	workspacesCreateCmd.Flags().StringVarP(&templateFlag, "template", "t", "REACT", "template to scaffold from")

	workspacesCmd.AddCommand(workspacesCreateCmd, workspacesDeleteCmd)
	rootCmd.AddCommand(serveCmd, scaffoldCmd, templatesCmd, exportCmd, importCmd, historyCmd, workspacesCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log := logging.Named("codepad")
	log.Info("starting", zap.String("config_dir", cfg.CodepadDir))
	return serve(ctx, NewApp(cfg, log), log)
}

func runScaffold(cmd *cobra.Command, args []string) error {
	reg := template.NewRegistry(cfg.TemplateDirs())
	reg.SetMaxFileSize(maxSizeFlag)
	root, err := reg.Scaffold(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	return writeTree(cmd, root, "")
}

// workspaceArg picks the workspace from args, falling back to config.
func workspaceArg(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return cfg.Workspace.ID
}

func openStore(ctx context.Context) (store.Backend, error) {
	b, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Store.Backend, err)
	}
	return b, nil
}

func runExport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	b, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer b.Close()

	id := workspaceArg(args)
	data, err := b.Load(ctx, id)
	if err != nil {
		return fmt.Errorf("load %s: %w", id, err)
	}
	root, err := tree.Unmarshal(data)
	if err != nil {
		return err
	}
	return writeTree(cmd, root, outputFlag)
}

func writeTree(cmd *cobra.Command, root *tree.Folder, path string) error {
	data, err := tree.MarshalIndent(root)
	if err != nil {
		return err
	}
	data = append(data, '\n')
	if path == "" {
		_, err = cmd.OutOrStdout().Write(data)
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func runImport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	raw, err := os.ReadFile(args[1])
	if err != nil {
		return err
	}
	root, err := tree.Unmarshal(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", args[1], err)
	}
	data, err := tree.Marshal(root)
	if err != nil {
		return err
	}

	b, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer b.Close()
	if err := b.Save(ctx, args[0], data); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "imported %d nodes into %s\n", tree.Count(root), args[0])
	return nil
}

func runHistory(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	b, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer b.Close()

	h, ok := b.(store.Historian)
	if !ok {
		return errNoHistory
	}
	revs, err := h.History(ctx, workspaceArg(args), limitFlag)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "REVISION\tCREATED\tSIZE\tHASH")
	for _, r := range revs {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%.12s\n", r.ID, r.CreatedAt.Format("2006-01-02 15:04:05"), r.Size, r.Hash)
	}
	return tw.Flush()
}

func runWorkspacesList(cmd *cobra.Command, args []string) error {
	b, err := openStore(cmd.Context())
	if err != nil {
		return err
	}
	defer b.Close()

	db, err := catalog(b)
	if err != nil {
		return err
	}
	all, err := db.ListWorkspaces()
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tTEMPLATE\tUPDATED")
	for _, ws := range all {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", ws.ID, ws.Name, ws.Template, ws.UpdatedAt.Format("2006-01-02 15:04:05"))
	}
	return tw.Flush()
}

func runWorkspacesCreate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	b, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer b.Close()

	ws, err := createWorkspace(ctx, b, template.NewRegistry(cfg.TemplateDirs()), args[0], templateFlag)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), ws.ID)
	return nil
}

func runWorkspacesDelete(cmd *cobra.Command, args []string) error {
	b, err := openStore(cmd.Context())
	if err != nil {
		return err
	}
	defer b.Close()

	db, err := catalog(b)
	if err != nil {
		return err
	}
	return db.DeleteWorkspace(args[0])
}
