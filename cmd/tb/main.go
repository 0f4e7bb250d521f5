package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"taskboard/internal/app"
	"taskboard/internal/config"
	"taskboard/internal/domain"
	"taskboard/internal/engine"
	"taskboard/internal/logging"
	"taskboard/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "tb",
	Short: "Taskboard CLI",
	Long: `Taskboard is a small shared task board with role-based access.
- Users are MEMBER or ADMIN; admins may edit or delete anything.
- Tasks have a title, optional description, due date and assignee, and a status
  that moves between PENDING, IN_PROGRESS and COMPLETED.
- Comments belong to a task; only their author or an admin may delete them.
- 'tb serve' exposes the JSON API; the other commands operate on the database directly.`,
	SilenceUsage: true,
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("TASKBOARD")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().String("config", "", "config file (default <workspace>/"+config.FileName+")")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("log-level", "", "log level (overrides config)")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
}

func registerCommands() {
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(userCmd())
	rootCmd.AddCommand(apiKeyCmd())
	rootCmd.AddCommand(taskCmd())
	rootCmd.AddCommand(tokenCmd())
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				addr := a.Config.Server.Addr
				basePath := a.Config.Server.BasePath
				handler, err := server.New(server.Config{Engine: a.Engine, BasePath: basePath, Log: a.Log})
				if err != nil {
					return err
				}
				srv := &http.Server{Addr: addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}
				go func() {
					<-ctx.Done()
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					srv.Shutdown(shutdownCtx)
				}()
				a.Log.WithFields(logrus.Fields{"addr": addr, "base_path": basePath}).Info("serving taskboard api")
				fmt.Printf("Serving Taskboard API on http://%s%s (OpenAPI at %s/openapi.json, Swagger UI at /docs)\n", addr, basePath, basePath)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
		},
	}
	cmd.Flags().String("addr", "", "listen address (overrides config)")
	cmd.Flags().String("base-path", "", "API base path (overrides config)")
	_ = viper.BindPFlag("server.addr", cmd.Flags().Lookup("addr"))
	_ = viper.BindPFlag("server.base_path", cmd.Flags().Lookup("base-path"))
	return cmd
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				fmt.Println("database is up to date")
				return nil
			})
		},
	}
}

func configCmd() *cobra.Command {
	cfg := &cobra.Command{Use: "config", Short: "Inspect configuration"}
	cfg.AddCommand(&cobra.Command{
		Use:   "default",
		Short: "Print the default config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Print(config.GenerateDefault())
			return nil
		},
	})
	return cfg
}

func userCmd() *cobra.Command {
	usr := &cobra.Command{Use: "user", Short: "Manage users"}
	usr.AddCommand(userCreateCmd())
	usr.AddCommand(userListCmd())
	return usr
}

func userCreateCmd() *cobra.Command {
	var name, email, password, role string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, ok := domain.ParseRole(role)
			if !ok {
				return fmt.Errorf("invalid role %q (expected MEMBER or ADMIN)", role)
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				u, err := a.Engine.CreateUser(ctx, engine.UserCreateOptions{Name: name, Email: email, Password: password, Role: r})
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(u.Profile())
				}
				fmt.Printf("Created user %d (%s, %s)\n", u.ID, u.Email, u.Role)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringVar(&email, "email", "", "email address")
	cmd.Flags().StringVar(&password, "password", "", "password")
	cmd.Flags().StringVar(&role, "role", string(domain.RoleMember), "MEMBER or ADMIN")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func userListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List users",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				users, err := a.Engine.ListUsers(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					out := make([]domain.UserProfile, 0, len(users))
					for _, u := range users {
						out = append(out, u.Profile())
					}
					return printJSON(out)
				}
				tw := newTable()
				tw.AppendHeader(table.Row{"ID", "Name", "Email", "Role", "Created"})
				for _, u := range users {
					tw.AppendRow(table.Row{u.ID, u.Name, u.Email, u.Role, u.CreatedAt})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func apiKeyCmd() *cobra.Command {
	key := &cobra.Command{Use: "apikey", Short: "Manage API keys"}
	key.AddCommand(apiKeyCreateCmd())
	key.AddCommand(apiKeyListCmd())
	key.AddCommand(apiKeyDeleteCmd())
	return key
}

func apiKeyCreateCmd() *cobra.Command {
	var email, name string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an API key for a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				k, secret, err := a.Engine.CreateAPIKey(ctx, email, name)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(map[string]any{"id": k.ID, "userId": k.UserID, "name": k.Name, "key": secret})
				}
				fmt.Printf("API key %s created for %s\n", k.ID, email)
				fmt.Printf("Key (shown once): %s\n", secret)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "owner email")
	cmd.Flags().StringVar(&name, "name", "", "key label")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func apiKeyListCmd() *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List API keys of a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				keys, err := a.Engine.ListAPIKeys(ctx, email)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(keys)
				}
				tw := newTable()
				tw.AppendHeader(table.Row{"ID", "Name", "Created"})
				for _, k := range keys {
					tw.AppendRow(table.Row{k.ID, k.Name, k.CreatedAt})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "owner email")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func apiKeyDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Revoke an API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				if err := a.Engine.DeleteAPIKey(ctx, args[0]); err != nil {
					return err
				}
				fmt.Printf("API key %s deleted\n", args[0])
				return nil
			})
		},
	}
}

func taskCmd() *cobra.Command {
	tsk := &cobra.Command{Use: "task", Short: "Inspect tasks"}
	tsk.PersistentFlags().String("as", "", "email of the user to act as")
	_ = tsk.MarkPersistentFlagRequired("as")
	tsk.AddCommand(taskListCmd())
	tsk.AddCommand(taskShowCmd())
	return tsk
}

func taskListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				id, err := actAs(ctx, cmd, a)
				if err != nil {
					return err
				}
				tasks, err := a.Engine.ListTasks(ctx, id)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(tasks)
				}
				tw := newTable()
				tw.AppendHeader(table.Row{"ID", "Title", "Status", "Due", "Creator", "Assignee"})
				for _, t := range tasks {
					tw.AppendRow(table.Row{t.ID, t.Title, t.Status, deref(t.DueDate), userName(t.CreatedBy), userName(t.AssignedTo)})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func taskShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a task with its comments",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			taskID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid task id %q", args[0])
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				id, err := actAs(ctx, cmd, a)
				if err != nil {
					return err
				}
				t, err := a.Engine.GetTask(ctx, id, taskID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(t)
				}
				fmt.Printf("#%d %s [%s]\n", t.ID, t.Title, t.Status)
				if d := deref(t.Description); d != "" {
					fmt.Println(d)
				}
				fmt.Printf("Created by %s, assigned to %s, due %s\n", userName(t.CreatedBy), orDash(userName(t.AssignedTo)), orDash(deref(t.DueDate)))
				if len(t.Comments) > 0 {
					tw := newTable()
					tw.AppendHeader(table.Row{"ID", "Author", "Created", "Comment"})
					for _, c := range t.Comments {
						tw.AppendRow(table.Row{c.ID, userName(c.Author), c.CreatedAt, c.Content})
					}
					tw.Render()
				}
				return nil
			})
		},
	}
}

func tokenCmd() *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for an existing user",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				token, err := a.Engine.IssueToken(ctx, email)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(map[string]string{"token": token})
				}
				fmt.Println(token)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "user email")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

// --- helpers ---

func withApp(ctx context.Context, fn func(context.Context, *app.App) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	a, err := app.Open(ctx, viper.GetString("workspace"), cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

// loadConfig reads the config file and applies flag and TASKBOARD_* overrides.
func loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if path := viper.GetString("config"); path != "" {
		cfg, err = config.FromFile(path)
	} else {
		cfg, err = config.LoadOptional(viper.GetString("workspace"))
	}
	if err != nil {
		return nil, err
	}
	overrideString("server.addr", &cfg.Server.Addr)
	overrideString("server.base_path", &cfg.Server.BasePath)
	overrideString("database.driver", &cfg.Database.Driver)
	overrideString("database.path", &cfg.Database.Path)
	overrideString("database.dsn", &cfg.Database.DSN)
	overrideString("auth.jwt_secret", &cfg.Auth.JWTSecret)
	overrideString("auth.token_ttl", &cfg.Auth.TokenTTL)
	overrideString("log.level", &cfg.Log.Level)
	overrideString("log.format", &cfg.Log.Format)
	overrideString("bootstrap.admin.name", &cfg.Bootstrap.Admin.Name)
	overrideString("bootstrap.admin.email", &cfg.Bootstrap.Admin.Email)
	overrideString("bootstrap.admin.password", &cfg.Bootstrap.Admin.Password)
	if viper.IsSet("auth.allow_registration") {
		cfg.Auth.AllowRegistration = viper.GetBool("auth.allow_registration")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func overrideString(key string, dst *string) {
	if v := viper.GetString(key); v != "" {
		*dst = v
	}
}

func actAs(ctx context.Context, cmd *cobra.Command, a *app.App) (domain.Identity, error) {
	email, _ := cmd.Flags().GetString("as")
	u, err := a.Repo.GetUserByEmail(ctx, email)
	if err != nil {
		return domain.Identity{}, fmt.Errorf("user %s: %w", email, err)
	}
	return domain.Identity{ID: u.ID, Role: u.Role}, nil
}

func newTable() table.Writer {
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	return tw
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func userName(u *domain.UserSummary) string {
	if u == nil {
		return ""
	}
	return u.Name
}
