package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"
	"go.uber.org/automaxprocs/maxprocs"

	"github.com/starford/agenda/internal"
	"github.com/starford/agenda/internal/calendar"
	pkgconfig "github.com/starford/agenda/pkg/config"
)

var version = "dev"

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.Load(cmd.String("config"), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := internal.Run(ctx, internal.WithConfig(cfg), internal.WithVersion(version)); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}
	return nil
}

func refreshOnce(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	_, err = internal.RunRefresh(ctx, internal.WithConfig(cfg))
	return err
}

func mcp(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	return internal.RunMCP(ctx, internal.WithConfig(cfg), internal.WithVersion(version))
}

// googleAuth walks the installed-app OAuth flow and stores the token the
// google calendar backend reads.
func googleAuth(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	gc := cfg.Calendar.Google.Calendar()
	oc, err := calendar.OAuthConfig(gc)
	if err != nil {
		return err
	}

	fmt.Println("Open this URL in a browser and authorize access:")
	fmt.Println(calendar.AuthCodeURL(oc))
	fmt.Print("Authorization code: ")

	code, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return fmt.Errorf("read code: %w", err)
	}
	token, err := calendar.Exchange(ctx, oc, strings.TrimSpace(code))
	if err != nil {
		return err
	}
	if err := calendar.SaveToken(gc.TokenFile, token); err != nil {
		return err
	}
	fmt.Printf("Token saved to %s\n", gc.TokenFile)
	return nil
}

func main() {
	if _, err := maxprocs.Set(); err != nil {
		slog.Warn("failed to set GOMAXPROCS", slog.String("error", err.Error()))
	}

	cmd := &cli.Command{
		Name:    "agenda",
		Usage:   "Event discovery backend with date range selection, calendar export and booking links",
		Version: version,
		Action:  serve,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP API, refresh schedule and seed watcher",
				Action: serve,
			},
			{
				Name:   "refresh",
				Usage:  "Sync the event cache from the source once and exit",
				Action: refreshOnce,
			},
			{
				Name:   "mcp",
				Usage:  "Serve the MCP tools on stdio",
				Action: mcp,
			},
			{
				Name:   "google-auth",
				Usage:  "Authorize the Google Calendar backend and save its token",
				Action: googleAuth,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
