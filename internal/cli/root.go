package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/afero"

	"github.com/julianstephens/habitrefresh/internal/config"
	"github.com/julianstephens/habitrefresh/internal/habitdb"
	"github.com/julianstephens/habitrefresh/internal/hostapp"
	"github.com/julianstephens/habitrefresh/internal/keyring"
	"github.com/julianstephens/habitrefresh/internal/logger"
	"github.com/julianstephens/habitrefresh/internal/notifier"
	"github.com/julianstephens/habitrefresh/internal/resolver"
	"github.com/julianstephens/habitrefresh/internal/storage"
	"github.com/julianstephens/habitrefresh/internal/worker"
)

type Context struct {
	Config     config.Config
	ConfigPath string
	Store      *storage.Store
	// Out receives human-readable output; nil means stdout.
	Out io.Writer
}

func (c *Context) out() io.Writer {
	if c.Out == nil {
		return os.Stdout
	}
	return c.Out
}

func (c *Context) printf(format string, args ...any) {
	fmt.Fprintf(c.out(), format, args...)
}

var (
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	failStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Width(20)
	titleStyle = lipgloss.NewStyle().Bold(true)
)

// HabitSource builds the configured habit database reader
func (c *Context) HabitSource() habitdb.Source {
	if c.Config.HabitSource.Driver == config.DriverPostgres {
		user := c.Config.HabitSource.KeyringUser
		return habitdb.NewPostgresSource(func() (string, error) {
			return keyring.GetDSN(user)
		})
	}
	return habitdb.NewSQLiteSource(afero.NewOsFs(), c.Config.HabitSource.Path, c.Config.HabitSource.SearchPaths)
}

// HostTrigger builds the fallback path into the host application
func (c *Context) HostTrigger() *hostapp.Trigger {
	return hostapp.New(hostapp.Options{
		LockfilePath: c.Config.Host.LockfilePath,
		Executable:   c.Config.Host.Executable,
		ProcessName:  c.Config.Host.ProcessName,
	})
}

// Broadcaster returns an MQTT broadcaster when a broker is configured and a
// log-only one otherwise. A broker that cannot be reached at startup is
// logged and replaced by the log broadcaster.
func (c *Context) Broadcaster() notifier.Broadcaster {
	b := c.Config.Broadcast
	if b.Broker == "" {
		return notifier.LogBroadcaster{}
	}
	mqtt, err := notifier.NewMQTTBroadcaster(notifier.MQTTOptions{
		Broker:   b.Broker,
		Topic:    b.Topic,
		ClientID: b.ClientID,
		Username: b.Username,
		Password: b.Password,
	})
	if err != nil {
		logger.Warn("broker unavailable, render requests will only be logged", "broker", b.Broker, "error", err)
		return notifier.LogBroadcaster{}
	}
	return mqtt
}

// Pipeline is one boundary worker wired to its collaborators
type Pipeline struct {
	Worker   *worker.Worker
	Notifier *notifier.Notifier
}

func (p *Pipeline) Close() error {
	return p.Notifier.Close()
}

// NewPipeline wires resolver, notifier and worker against the state store
func (c *Context) NewPipeline() (*Pipeline, error) {
	loc, err := c.Config.Location()
	if err != nil {
		return nil, err
	}
	grace, err := c.Config.GracePeriod()
	if err != nil {
		return nil, err
	}

	res := resolver.New(resolver.Options{
		Source:    c.HabitSource(),
		Trigger:   c.HostTrigger(),
		Snapshots: c.Store,
		Location:  loc,
		Grace:     grace,
	})
	n := notifier.New(c.Store, c.Broadcaster())
	w := worker.New(worker.Options{
		Guard:    c.Store,
		Resolver: res,
		Notifier: n,
		Location: loc,
	})
	return &Pipeline{Worker: w, Notifier: n}, nil
}
