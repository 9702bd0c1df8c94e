package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"agentdeck/internal/app"
	"agentdeck/internal/auth"
	"agentdeck/internal/tui"

	"github.com/spf13/cobra"
)

const (
	version = "1.0.0"
	repoURL = "https://github.com/agentdeck/agentdeck"
)

func loadConfig(cmd *cobra.Command) (app.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		path = app.DefaultConfigPath()
	}
	cfg, err := app.LoadConfig(path)
	if err != nil {
		return app.Config{}, err
	}
	if server, _ := cmd.Flags().GetString("server"); server != "" {
		cfg.ServerURL = strings.TrimRight(server, "/")
	}
	return cfg, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		cancel()
	}()
	return ctx, cancel
}

func main() {
	root := &cobra.Command{
		Use:     "agentdeck",
		Short:   "Terminal control surface for a remote coding agent",
		Long:    "Agentdeck attaches to a remote coding-agent backend over a websocket and lets you drive sessions from the terminal.\n\nRun without arguments to open the chat surface for a project.\n\nFor more information, visit: " + repoURL,
		Version: version,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			projectID, _ := cmd.Flags().GetString("project")
			application := app.NewApplication(cfg)
			defer application.Shutdown()

			if projectID == "" {
				ctx, cancel := signalContext()
				defer cancel()
				projectID, err = pickFirstProject(ctx, application)
				if err != nil {
					return err
				}
			}

			return tui.Run(application, projectID)
		},
	}

	root.PersistentFlags().String("config", "", "Path to config file")
	root.PersistentFlags().String("server", "", "Backend base URL (overrides config)")
	root.Flags().StringP("project", "p", "", "Project ID to open")

	loginCmd := &cobra.Command{
		Use:   "login <token>",
		Short: "Save the backend access token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			token := strings.TrimSpace(args[0])
			if token == "" {
				return fmt.Errorf("token must not be empty")
			}
			store := auth.NewTokenStore(auth.DefaultTokenPath())
			if err := store.Save(token); err != nil {
				return err
			}
			fmt.Println("Token saved.")
			return nil
		},
	}

	logoutCmd := &cobra.Command{
		Use:   "logout",
		Short: "Remove the saved access token",
		RunE: func(cmd *cobra.Command, args []string) error {
			store := auth.NewTokenStore(auth.DefaultTokenPath())
			if err := store.Clear(); err != nil {
				return err
			}
			fmt.Println("Token removed.")
			return nil
		},
	}

	projectsCmd := &cobra.Command{
		Use:   "projects",
		Short: "List projects on the backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			ctx, cancel := signalContext()
			defer cancel()

			application := app.NewApplication(cfg)
			defer application.Shutdown()

			list, err := application.API.ListProjects(ctx, 0, 100)
			if err != nil {
				return err
			}
			if len(list.Projects) == 0 {
				fmt.Println("No projects.")
				return nil
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tDESCRIPTION")
			for _, p := range list.Projects {
				fmt.Fprintf(w, "%s\t%s\t%s\n", p.ID, p.Name, p.Description)
			}
			return w.Flush()
		},
	}

	sessionsCmd := &cobra.Command{
		Use:   "sessions <project-id>",
		Short: "List sessions in a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			ctx, cancel := signalContext()
			defer cancel()

			application := app.NewApplication(cfg)
			defer application.Shutdown()

			list, err := application.API.ListSessions(ctx, args[0])
			if err != nil {
				return err
			}
			if len(list.Sessions) == 0 {
				fmt.Println("No sessions.")
				return nil
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tMESSAGES\tUPDATED")
			for _, s := range list.Sessions {
				fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", s.ID, s.Name, s.MessageCount, s.UpdatedAt)
			}
			return w.Flush()
		},
	}

	root.AddCommand(loginCmd, logoutCmd, projectsCmd, sessionsCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// pickFirstProject resolves the project to open when none was given on the
// command line.
func pickFirstProject(ctx context.Context, a *app.Application) (string, error) {
	list, err := a.API.ListProjects(ctx, 0, 1)
	if err != nil {
		return "", err
	}
	if len(list.Projects) == 0 {
		return "", fmt.Errorf("no projects on the backend; create one first")
	}
	return list.Projects[0].ID, nil
}
