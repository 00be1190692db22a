package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"emailtoics/src-server/handler"
	"emailtoics/src-server/ical"
	"emailtoics/src-server/intake"
	"emailtoics/src-server/metric"
	"emailtoics/src-server/route"
	"emailtoics/src-server/scheduler"
	"emailtoics/src-server/utils"

	"github.com/bwmarrin/discordgo"
	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"
)

func init() {
	if err := godotenv.Load(); err != nil {
		slog.Info(err.Error())
	}
	level := slog.LevelInfo
	if raw := os.Getenv("LOG_LEVEL"); raw != "" {
		if err := level.UnmarshalText([]byte(raw)); err != nil {
			level = slog.LevelInfo
		}
	}
	slog.SetDefault(slog.New(
		tint.NewHandler(os.Stderr, &tint.Options{
			Level:      level,
			TimeFormat: time.RFC1123Z,
		}),
	))
}

func main() {
	app := &cli.App{
		Name:   "emailtoics",
		Usage:  "Turn events extracted from emails into iCalendar invites.",
		Action: serve,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP API and, when DISCORD_APP_TOKEN is set, the Discord bot.",
				Action: serve,
			},
			{
				Name:      "build",
				Usage:     "Serialize extracted events (JSON) into an .ics document.",
				ArgsUsage: "<events.json|->",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "Write the document to this file instead of stdout."},
				},
				Action: build,
			},
			{
				Name:      "validate",
				Usage:     "Check the structure of an .ics document.",
				ArgsUsage: "<file.ics|->",
				Action:    validate,
			},
			{
				Name:      "parse",
				Usage:     "Read the events of an .ics document as JSON.",
				ArgsUsage: "<file.ics|->",
				Action:    parse,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		slog.Error("emailtoics failed", "error", err)
		os.Exit(1)
	}
}

// Read the file named by the first argument, "-" or nothing meaning stdin.
func readInput(c *cli.Context) ([]byte, error) {
	path := c.Args().First()
	if path == "" || path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}

func newEngine() (*ical.Engine, error) {
	cfg, err := utils.LoadConfig(os.Getenv)
	if err != nil {
		return nil, err
	}
	return ical.NewEngine(cfg.GetEngineConfig())
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func build(c *cli.Context) error {
	engine, err := newEngine()
	if err != nil {
		return err
	}
	raw, err := readInput(c)
	if err != nil {
		return err
	}
	req, err := intake.DecodeRequest(raw)
	if err != nil {
		return err
	}
	doc, err := intake.NewConverter(engine, nil).Document(req, time.Now())
	if err != nil {
		return err
	}
	ics, err := engine.Serialize(doc)
	if err != nil {
		return err
	}
	if out := c.String("out"); out != "" {
		return os.WriteFile(out, []byte(ics), 0o644)
	}
	_, err = io.WriteString(c.App.Writer, ics)
	return err
}

func validate(c *cli.Context) error {
	raw, err := readInput(c)
	if err != nil {
		return err
	}
	report := ical.Validate(string(raw))
	if err := printJSON(c.App.Writer, report); err != nil {
		return err
	}
	if !report.Valid {
		return cli.Exit("", 1)
	}
	return nil
}

func parse(c *cli.Context) error {
	engine, err := newEngine()
	if err != nil {
		return err
	}
	raw, err := readInput(c)
	if err != nil {
		return err
	}
	doc, err := engine.ParseDocument(string(raw))
	if err != nil {
		return err
	}
	return printJSON(c.App.Writer, doc)
}

func serve(c *cli.Context) error {
	// There are 2 important things (and others) inside the AppState:
	// - appCmdInfo: a map of all slash commands
	// - appCmdHandler: a map of all slash command handlers
	as := utils.NewAppState()

	if as.DgSession != nil {
		if err := startDiscord(as); err != nil {
			as.GracefulShutdown()
			return err
		}
	}

	metric.Init(as)
	if err := scheduler.PendingSweep(as); err != nil {
		as.GracefulShutdown()
		return err
	}

	muxer := http.NewServeMux()
	muxer.Handle("GET /metrics", promhttp.Handler())
	route.Ical(muxer, as)
	server := &http.Server{
		Addr:              ":" + as.Config.GetPort(),
		Handler:           muxer,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("cannot start HTTP server", "error", err)
			as.AppCloseSignalChan <- syscall.SIGTERM
		}
	}()

	slog.Info("app is now running, press Ctrl+C to exit", "port", as.Config.GetPort())

	signal.Notify(as.AppCloseSignalChan, syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	<-as.AppCloseSignalChan
	slog.Info("Gracefully shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		slog.Warn("can't shut down HTTP server", "error", err)
	}
	as.GracefulShutdown()
	return nil
}

func startDiscord(as *utils.AppState) error {
	// injecting interaction handlers into appCmdInfo, appCmdHandler in AppState
	handler.Init(as)

	// tell discordgo how to handle interactions from Discord (w/ appCmdHandler)
	as.DgSession.AddHandler(func(s *discordgo.Session, i *discordgo.InteractionCreate) {
		if i.Type != discordgo.InteractionApplicationCommand {
			slog.Debug("ignored interaction", "type", i.Type)
			return
		}
		id := i.ApplicationCommandData().Name
		handler, ok := as.GetAppCmdHandler(id)
		if !ok {
			if err := utils.InteractRespHiddenReply(s, i, "Unknown command"); err != nil {
				slog.Warn("can't respond", "error", err.Error())
			}
			return
		}
		if err := handler(s, i); err != nil {
			slog.Error("handler error", "command", id, "error", err.Error())
		}
	})

	// open a connection to Discord
	if err := as.DgSession.Open(); err != nil {
		return fmt.Errorf("can't open discord connection: %w", err)
	}

	// tell Discord what commands we have (w/ appCmdInfo)
	if _, err := as.DgSession.ApplicationCommandBulkOverwrite(
		as.Config.GetDiscordClientId(),
		as.Config.GetDiscordGuildID(),
		func() []*discordgo.ApplicationCommand {
			var cmds []*discordgo.ApplicationCommand
			as.IterateAppCmdInfo(func(k string, v *discordgo.ApplicationCommand) {
				cmds = append(cmds, v)
			})
			return cmds
		}()); err != nil {
		slog.Error("can't create slash commands", "error", err.Error())
	}

	// cleanup appCmdInfo from memory
	as.NukeAppCmdInfo()
	runtime.GC()

	slog.Info("discord bot is running", "guilds", len(as.DgSession.State.Guilds))
	return nil
}
