package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/and161185/promptvault/internal/config"
	"github.com/and161185/promptvault/internal/identity"
	"github.com/and161185/promptvault/internal/limiter"
	"github.com/and161185/promptvault/internal/logging"
	"github.com/and161185/promptvault/internal/metrics"
	"github.com/and161185/promptvault/internal/remote"
	"github.com/and161185/promptvault/internal/service"
)

// connectFunc opens the transport to the ledger.
type connectFunc func(cfg config.Config, tokens remote.TokenSource, log *zap.Logger) (grpc.ClientConnInterface, io.Closer, error)

func dialLedger(cfg config.Config, tokens remote.TokenSource, log *zap.Logger) (grpc.ClientConnInterface, io.Closer, error) {
	cc, err := remote.Dial(remote.DialConfig{
		Addr:        cfg.LedgerAddr,
		CACert:      cfg.CACert,
		Insecure:    cfg.Insecure,
		Plaintext:   cfg.Plaintext,
		CallTimeout: cfg.CallTimeout,
	}, tokens, log)
	if err != nil {
		return nil, nil, err
	}
	return cc, cc, nil
}

type app struct {
	in     io.Reader
	out    io.Writer
	errOut io.Writer

	connect connectFunc
	getenv  func(string) string

	// flags
	cfgPath   string
	addr      string
	caCert    string
	insecure  bool
	plaintext bool
	timeout   time.Duration
	logLevel  string

	cfg     config.Config
	log     *zap.Logger
	conn    io.Closer
	session *identity.Session
	mp      *service.Marketplace
	reg     *prometheus.Registry
}

func newApp(in io.Reader, out, errOut io.Writer) *app {
	return &app{in: in, out: out, errOut: errOut, connect: dialLedger, getenv: os.Getenv}
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "pv",
		Short:         "PromptVault marketplace client",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "version" {
				return nil
			}
			return a.setup(cmd)
		},
	}
	pf := root.PersistentFlags()
	pf.StringVar(&a.cfgPath, "config", "", "config file (default $XDG_CONFIG_HOME/promptvault/config.yaml)")
	pf.StringVar(&a.addr, "addr", "", "ledger address host:port")
	pf.StringVar(&a.caCert, "cacert", "", "CA certificate (PEM)")
	pf.BoolVar(&a.insecure, "insecure", false, "skip certificate verification (dev)")
	pf.BoolVar(&a.plaintext, "plaintext", false, "connect without TLS (local ledger replica)")
	pf.DurationVar(&a.timeout, "timeout", 0, "per-call timeout")
	pf.StringVar(&a.logLevel, "log-level", "", "debug|info|warn|error")

	root.AddCommand(
		a.versionCmd(),
		a.loginCmd(), a.logoutCmd(), a.whoamiCmd(), a.renameCmd(),
		a.listCmd(), a.mineCmd(), a.purchasedCmd(), a.showCmd(), a.contentCmd(), a.searchCmd(),
		a.buyCmd(), a.likeCmd(), a.unlikeCmd(), a.rateCmd(),
		a.createCmd(), a.updateCmd(), a.deleteCmd(),
		a.balanceCmd(),
	)
	return root
}

// resolveConfig layers flags over file and environment.
func (a *app) resolveConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load(a.cfgPath)
	if err != nil {
		return config.Config{}, err
	}
	f := cmd.Flags()
	if f.Changed("addr") {
		cfg.LedgerAddr = a.addr
	}
	if f.Changed("cacert") {
		cfg.CACert = a.caCert
	}
	if f.Changed("insecure") {
		cfg.Insecure = a.insecure
	}
	if f.Changed("plaintext") {
		cfg.Plaintext = a.plaintext
	}
	if f.Changed("timeout") {
		cfg.CallTimeout = a.timeout
	}
	if f.Changed("log-level") {
		cfg.LogLevel = a.logLevel
	}
	return cfg, cfg.Validate()
}

func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := a.resolveConfig(cmd)
	if err != nil {
		return err
	}
	a.cfg = cfg

	log, err := logging.New(cfg.LogLevel, false)
	if err != nil {
		return err
	}
	a.log = log

	master, err := masterKey(cfg.ConfigDir, a.getenv("PV_PASSPHRASE"))
	if err != nil {
		return fmt.Errorf("session key: %w", err)
	}
	term := newTerminal(a.in, a.errOut)
	a.session = identity.NewSession(
		tokenProvider{term: term, token: a.getenv("PV_TOKEN")},
		identity.NewFileStore(cfg.ConfigDir, master),
		log.Named("session"),
	)

	cc, closer, err := a.connect(cfg, a.session, log.Named("remote"))
	if err != nil {
		return err
	}
	a.conn = closer

	a.reg = prometheus.NewRegistry()
	a.mp = service.NewMarketplace(service.Deps{
		Client:             remote.NewGRPCClient(cc, a.session, log.Named("client")),
		Session:            a.session,
		Onboarding:         term,
		Limiter:            limiter.NewRate(cfg.HydrateRPS, cfg.HydrateBurst),
		HydrateConcurrency: cfg.HydrateConcurrency,
		Metrics:            metrics.NewCollector(a.reg),
		Log:                log,
	})
	if err := a.mp.Start(cmd.Context()); err != nil {
		fmt.Fprintln(a.errOut, "warning:", err)
	}
	return nil
}

func (a *app) close() {
	if a.conn != nil {
		_ = a.conn.Close()
	}
	if a.reg != nil && a.cfg.MetricsTextfile != "" {
		if err := metrics.WriteTextfile(a.cfg.MetricsTextfile, a.reg); err != nil && a.log != nil {
			a.log.Warn("write metrics textfile", zap.Error(err))
		}
	}
	if a.log != nil {
		_ = a.log.Sync()
	}
}
