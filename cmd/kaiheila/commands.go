package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/pflag"

	"kaiheila/internal/adapter/gateway"
	"kaiheila/internal/adapter/rest"
	"kaiheila/internal/domain"
	"kaiheila/internal/infra/config"
	"kaiheila/internal/infra/logger"
	"kaiheila/internal/infra/tracer"
)

var errUnknownCommand = errors.New("unknown command")

type commandFunc func(ctx context.Context, env *env, fs *pflag.FlagSet) error

// commands maps a subcommand to its flag definitions and body.
var commands = map[string]struct {
	flags func(*pflag.FlagSet)
	run   commandFunc
}{
	"gateway": {gatewayFlags, runGateway},
	"guilds":  {func(*pflag.FlagSet) {}, runGuilds},
	"guild":   {guildFlags, runGuild},
	"members": {membersFlags, runMembers},
	"mutes":   {guildFlags, runMutes},
	"mute":    {muteFlags, runMute},
}

func versionString() string {
	return "kaiheila " + rest.Version
}

// globalFlags are accepted by every subcommand.
type globalFlags struct {
	configPath string
	token      string
	oauth2     bool
	baseURL    string
	jsonOut    bool
}

func addGlobalFlags(fs *pflag.FlagSet) *globalFlags {
	g := &globalFlags{}
	fs.StringVar(&g.configPath, "config", "config.yaml", "config file path")
	fs.StringVar(&g.token, "token", "", "API token")
	fs.BoolVar(&g.oauth2, "oauth2", false, "use an OAuth2 bearer token")
	fs.StringVar(&g.baseURL, "base-url", "", "API origin plus version prefix")
	fs.BoolVar(&g.jsonOut, "json", false, "print JSON output")
	return g
}

// env is the per-invocation runtime: loaded config, logger, and API client.
type env struct {
	cfg     *config.Config
	client  *rest.Client
	logger  *slog.Logger
	out     io.Writer
	jsonOut bool
}

func (e *env) printJSON(v any) error {
	enc := json.NewEncoder(e.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (e *env) table(header ...string) *tabwriter.Writer {
	tw := tabwriter.NewWriter(e.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(header, "\t"))
	return tw
}

// runCommand parses args for the named subcommand, builds the runtime and
// runs the command. Flag errors and setup failures are returned.
func runCommand(ctx context.Context, name string, args []string, out io.Writer) error {
	cmd, ok := commands[name]
	if !ok {
		return errUnknownCommand
	}

	fs := pflag.NewFlagSet("kaiheila "+name, pflag.ContinueOnError)
	fs.SetOutput(out)
	g := addGlobalFlags(fs)
	cmd.flags(fs)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	cfg, err := g.load()
	if err != nil {
		return err
	}

	log, closeLog, err := logger.New(cfg.Logger)
	if err != nil {
		return err
	}
	defer closeLog()

	shutdown, err := tracer.Setup(ctx, cfg.Tracer)
	if err != nil {
		return fmt.Errorf("setup tracer: %w", err)
	}
	defer shutdown(context.Background())

	client, err := rest.New(cfg.API, log)
	if err != nil {
		return err
	}

	return cmd.run(ctx, &env{cfg: cfg, client: client, logger: log, out: out, jsonOut: g.jsonOut}, fs)
}

// load reads the config file and applies command line overrides.
func (g *globalFlags) load() (*config.Config, error) {
	cfg, err := config.Load(g.configPath)
	if err != nil {
		return nil, err
	}
	if g.token != "" {
		cfg.API.Token = g.token
	}
	if g.oauth2 {
		cfg.API.TokenType = config.TokenTypeOAuth2
	}
	if g.baseURL != "" {
		cfg.API.BaseURL = g.baseURL
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// --- gateway ---

func gatewayFlags(fs *pflag.FlagSet) {
	fs.Uint64("resume-sn", 0, "last processed event sequence number")
	fs.String("session-id", "", "session to resume (requires --resume-sn)")
	fs.Bool("dial", false, "connect and print the HELLO handshake")
}

func runGateway(ctx context.Context, e *env, fs *pflag.FlagSet) error {
	addr, err := e.client.Gateway(ctx)
	if err != nil {
		return err
	}
	if !e.cfg.Gateway.Compress {
		addr.Compress = false
	}

	sessionID, _ := fs.GetString("session-id")
	if fs.Changed("resume-sn") || sessionID != "" {
		sn, _ := fs.GetUint64("resume-sn")
		addr, err = addr.WithResume(gateway.ResumeState{SN: sn, SessionID: sessionID})
		if err != nil {
			return err
		}
	}

	if dial, _ := fs.GetBool("dial"); dial {
		return dialGateway(ctx, e, addr)
	}

	wire, err := addr.Build()
	if err != nil {
		return err
	}
	if e.jsonOut {
		return e.printJSON(map[string]any{
			"url":      wire,
			"compress": addr.Compress,
			"resume":   addr.Resume,
		})
	}
	_, err = fmt.Fprintln(e.out, wire)
	return err
}

func dialGateway(ctx context.Context, e *env, addr gateway.Address) error {
	conn, err := gateway.Dial(ctx, addr, e.cfg.Gateway, e.logger)
	if err != nil {
		return err
	}
	defer conn.Close()

	var tracker gateway.ResumeTracker
	for {
		f, err := conn.ReadFrame(ctx)
		if err != nil {
			return err
		}
		if err := tracker.Observe(f); err != nil {
			return err
		}
		switch f.S {
		case gateway.SignalHello, gateway.SignalResumeAck:
			st := tracker.State()
			if st == nil {
				return fmt.Errorf("%s frame carried no session id", f.S)
			}
			_, err := fmt.Fprintf(e.out, "%s session_id=%s sn=%d\n", f.S, st.SessionID, st.SN)
			return err
		case gateway.SignalReconnect:
			var rc gateway.Reconnect
			_ = f.DecodeData(&rc)
			return fmt.Errorf("gateway requested reconnect: code %d: %s", rc.Code, rc.Err)
		}
	}
}

// --- guilds ---

func runGuilds(ctx context.Context, e *env, _ *pflag.FlagSet) error {
	if e.jsonOut {
		guilds, err := e.client.Guilds().Collect(ctx)
		if err != nil {
			return err
		}
		return e.printJSON(guilds)
	}

	tw := e.table("ID", "NAME", "MASTER", "REGION")
	for g, err := range e.client.Guilds().All(ctx) {
		if err != nil {
			tw.Flush()
			return err
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", g.ID, g.Name, g.MasterID, g.Region)
	}
	return tw.Flush()
}

// --- guild / mutes ---

func guildFlags(fs *pflag.FlagSet) {
	fs.String("guild", "", "guild id (required)")
}

func requiredString(fs *pflag.FlagSet, name string) (string, error) {
	v, _ := fs.GetString(name)
	if v == "" {
		return "", fmt.Errorf("--%s is required", name)
	}
	return v, nil
}

func runGuild(ctx context.Context, e *env, fs *pflag.FlagSet) error {
	guildID, err := requiredString(fs, "guild")
	if err != nil {
		return err
	}
	view, err := e.client.GuildView(ctx, guildID)
	if err != nil {
		return err
	}
	if e.jsonOut {
		return e.printJSON(view)
	}

	fmt.Fprintf(e.out, "%s (%s)\n", view.Name, view.ID)
	if view.Topic != "" {
		fmt.Fprintf(e.out, "topic: %s\n", view.Topic)
	}
	fmt.Fprintln(e.out)
	tw := e.table("CHANNEL", "NAME", "TYPE", "CATEGORY")
	for _, ch := range view.Channels {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%t\n", ch.ID, ch.Name, ch.Type, ch.IsCategory)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintln(e.out)
	tw = e.table("ROLE", "NAME", "POSITION")
	for _, r := range view.Roles {
		fmt.Fprintf(tw, "%d\t%s\t%d\n", r.RoleID, r.Name, r.Position)
	}
	return tw.Flush()
}

func runMutes(ctx context.Context, e *env, fs *pflag.FlagSet) error {
	guildID, err := requiredString(fs, "guild")
	if err != nil {
		return err
	}
	mutes, err := e.client.GuildMuteList(ctx, guildID)
	if err != nil {
		return err
	}
	if e.jsonOut {
		return e.printJSON(mutes)
	}
	tw := e.table("TYPE", "USERS")
	fmt.Fprintf(tw, "mic\t%s\n", strings.Join(mutes.Mic.UserIDs, ","))
	fmt.Fprintf(tw, "headset\t%s\n", strings.Join(mutes.Headset.UserIDs, ","))
	return tw.Flush()
}

// --- members ---

func membersFlags(fs *pflag.FlagSet) {
	guildFlags(fs)
	fs.String("channel", "", "only members that can see this channel")
	fs.String("search", "", "filter by nickname or username")
	fs.Int("role", 0, "filter by role id")
	fs.Bool("mobile-verified", false, "filter by verified phone")
	fs.Bool("active-time", false, "sort by last activity (true: newest first)")
	fs.Bool("joined-at", false, "sort by join time (true: newest first)")
	fs.String("user", "", "look up a single user id")
}

// memberSetting builds the list filter; only flags set on the command line
// are sent.
func memberSetting(fs *pflag.FlagSet) (rest.GuildUserListSetting, error) {
	guildID, err := requiredString(fs, "guild")
	if err != nil {
		return rest.GuildUserListSetting{}, err
	}
	s := rest.GuildUserListSetting{GuildID: guildID}
	str := func(name string) *string {
		if !fs.Changed(name) {
			return nil
		}
		v, _ := fs.GetString(name)
		return &v
	}
	boolean := func(name string) *bool {
		if !fs.Changed(name) {
			return nil
		}
		v, _ := fs.GetBool(name)
		return &v
	}
	s.ChannelID = str("channel")
	s.Search = str("search")
	s.FilterUserID = str("user")
	s.MobileVerified = boolean("mobile-verified")
	s.ActiveTime = boolean("active-time")
	s.JoinedAt = boolean("joined-at")
	if fs.Changed("role") {
		v, _ := fs.GetInt("role")
		s.RoleID = &v
	}
	return s, nil
}

func runMembers(ctx context.Context, e *env, fs *pflag.FlagSet) error {
	setting, err := memberSetting(fs)
	if err != nil {
		return err
	}
	pager := e.client.GuildUsers(setting)
	if e.jsonOut {
		users, err := pager.Collect(ctx)
		if err != nil {
			return err
		}
		return e.printJSON(users)
	}

	tw := e.table("ID", "USERNAME", "NICKNAME", "ONLINE", "BOT", "ROLES")
	for u, err := range pager.All(ctx) {
		if err != nil {
			tw.Flush()
			return err
		}
		roles := make([]string, len(u.Roles))
		for i, r := range u.Roles {
			roles[i] = strconv.Itoa(r)
		}
		fmt.Fprintf(tw, "%s\t%s#%s\t%s\t%t\t%t\t%s\n",
			u.ID, u.Username, u.IdentifyNum, u.Nickname, u.Online, u.Bot, strings.Join(roles, ","))
	}
	return tw.Flush()
}

// --- mute ---

func muteFlags(fs *pflag.FlagSet) {
	guildFlags(fs)
	fs.String("user", "", "user id (required)")
	fs.String("type", "mic", "mute type: mic or headset")
	fs.Bool("delete", false, "lift the mute instead of applying it")
}

func parseMuteType(s string) (domain.MuteType, error) {
	switch strings.ToLower(s) {
	case "mic", "1":
		return domain.MuteMic, nil
	case "headset", "2":
		return domain.MuteHeadset, nil
	default:
		return 0, fmt.Errorf("--type %q must be mic or headset", s)
	}
}

func runMute(ctx context.Context, e *env, fs *pflag.FlagSet) error {
	guildID, err := requiredString(fs, "guild")
	if err != nil {
		return err
	}
	userID, err := requiredString(fs, "user")
	if err != nil {
		return err
	}
	typeFlag, _ := fs.GetString("type")
	mt, err := parseMuteType(typeFlag)
	if err != nil {
		return err
	}

	setting := domain.GuildMuteSetting{GuildID: guildID, UserID: userID, Type: mt}
	action := "muted"
	if del, _ := fs.GetBool("delete"); del {
		err = e.client.GuildMuteDelete(ctx, setting)
		action = "unmuted"
	} else {
		err = e.client.GuildMuteCreate(ctx, setting)
	}
	if err != nil {
		return err
	}
	e.logger.Info("guild mute updated", "guild_id", guildID, "user_id", userID, "type", typeFlag, "action", action)
	_, err = fmt.Fprintf(e.out, "%s %s in %s\n", action, userID, guildID)
	return err
}
