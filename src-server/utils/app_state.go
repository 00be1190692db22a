package utils

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"emailtoics/src-server/ical"
	"emailtoics/src-server/intake"
	"emailtoics/src-server/model"

	"github.com/bwmarrin/discordgo"
	"github.com/olebedev/when"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"github.com/uptrace/bun/extra/bundebug"
)

type AppState struct {
	Config    *Config
	RawDb     *sql.DB
	BunDB     *bun.DB
	DgSession *discordgo.Session // nil when the bot is disabled
	When      *when.Parser

	Engine    *ical.Engine
	Converter *intake.Converter

	MetricChans *Metric

	// receives SIGINT/SIGTERM, or a fatal error from a server goroutine
	AppCloseSignalChan chan os.Signal

	mu sync.RWMutex
	// will be send to Discord
	appCmdInfo map[string]*discordgo.ApplicationCommand
	// handling commands from Discord WSAPI
	appCmdHandler map[string]func(s *discordgo.Session, i *discordgo.InteractionCreate) error

	gracefulShutdownChans []*chan struct{}
	startTime             time.Time
}

// Build the app state from the environment: config, SQLite database, engine
// and, when a token is configured, the Discord session. Exits on failure.
func NewAppState() *AppState {
	cfg := NewConfig()

	rawDb, err := sql.Open(sqliteshim.ShimName, cfg.GetDatabasePath()+"?mode=rwc")
	if err != nil {
		slog.Error("cannot open sqlite database", "error", err)
		os.Exit(1)
	}
	rawDb.SetMaxIdleConns(8)
	bunDB := bun.NewDB(rawDb, sqlitedialect.New())
	bunDB.AddQueryHook(bundebug.NewQueryHook(
		bundebug.WithVerbose(true),
		bundebug.FromEnv("BUNDEBUG"),
	))

	as, err := NewAppStateWith(cfg, bunDB)
	if err != nil {
		slog.Error("cannot create app state", "error", err)
		os.Exit(1)
	}
	as.RawDb = rawDb

	if token := cfg.GetDiscordAppToken(); token != "" {
		as.DgSession, err = discordgo.New("Bot " + token)
		if err != nil {
			slog.Error("cannot create discord session", "error", err)
			os.Exit(1)
		}
	}
	return as
}

// Build the app state around an existing config and database. The Discord
// session is left nil.
func NewAppStateWith(cfg *Config, db *bun.DB) (*AppState, error) {
	engine, err := ical.NewEngine(cfg.GetEngineConfig())
	if err != nil {
		return nil, fmt.Errorf("NewAppStateWith: %w", err)
	}
	if err := model.CreateSchema(db); err != nil {
		return nil, fmt.Errorf("NewAppStateWith: %w", err)
	}

	as := &AppState{
		Config:             cfg,
		BunDB:              db,
		When:               intake.NewWhenParser(),
		Engine:             engine,
		MetricChans:        NewMetric(),
		AppCloseSignalChan: make(chan os.Signal, 1),
		appCmdInfo:         make(map[string]*discordgo.ApplicationCommand),
		appCmdHandler:      make(map[string]func(s *discordgo.Session, i *discordgo.InteractionCreate) error),
		startTime:          time.Now(),
	}
	as.Converter = intake.NewConverter(engine, as.When)
	return as, nil
}

func (as *AppState) GetUptime() time.Duration {
	return time.Since(as.startTime).Round(time.Second)
}

func (as *AppState) AddAppCmdInfo(id string, info *discordgo.ApplicationCommand) {
	as.mu.Lock()
	defer as.mu.Unlock()
	as.appCmdInfo[id] = info
}

func (as *AppState) IterateAppCmdInfo(fn func(k string, v *discordgo.ApplicationCommand)) {
	as.mu.RLock()
	defer as.mu.RUnlock()
	for k, v := range as.appCmdInfo {
		fn(k, v)
	}
}

// Drop the command descriptions once they were sent to Discord.
func (as *AppState) NukeAppCmdInfo() {
	as.mu.Lock()
	defer as.mu.Unlock()
	as.appCmdInfo = make(map[string]*discordgo.ApplicationCommand)
}

func (as *AppState) AddAppCmdHandler(id string, handler func(s *discordgo.Session, i *discordgo.InteractionCreate) error) {
	as.mu.Lock()
	defer as.mu.Unlock()
	as.appCmdHandler[id] = handler
}

func (as *AppState) GetAppCmdHandler(id string) (func(s *discordgo.Session, i *discordgo.InteractionCreate) error, bool) {
	as.mu.RLock()
	defer as.mu.RUnlock()
	handler, ok := as.appCmdHandler[id]
	return handler, ok
}

func (as *AppState) RemoveAppCmdHandler(id string) {
	as.mu.Lock()
	defer as.mu.Unlock()
	delete(as.appCmdHandler, id)
}

// Get a channel that is closed by GracefulShutdown.
func (as *AppState) CreateGracefulShutdownChan() *chan struct{} {
	as.mu.Lock()
	defer as.mu.Unlock()
	ch := make(chan struct{})
	as.gracefulShutdownChans = append(as.gracefulShutdownChans, &ch)
	return &ch
}

// Stop every background goroutine, then close Discord and the database.
func (as *AppState) GracefulShutdown() {
	as.mu.Lock()
	chans := as.gracefulShutdownChans
	as.gracefulShutdownChans = nil
	as.mu.Unlock()

	for _, ch := range chans {
		close(*ch)
	}

	if as.DgSession != nil {
		if err := as.DgSession.Close(); err != nil {
			slog.Warn("can't close discord session", "error", err)
		}
	}
	if as.BunDB != nil {
		if err := as.BunDB.Close(); err != nil {
			slog.Warn("can't close database", "error", err)
		}
	}
}
