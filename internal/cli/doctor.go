package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/julianstephens/habitrefresh/internal/config"
	"github.com/julianstephens/habitrefresh/internal/hostapp"
	"github.com/julianstephens/habitrefresh/internal/keyring"
	"github.com/julianstephens/habitrefresh/internal/notifier"
	"github.com/julianstephens/habitrefresh/internal/server"
)

type DoctorCmd struct{}

type checkLevel int

const (
	checkFail checkLevel = iota
	checkWarn
)

type check struct {
	name  string
	level checkLevel
	run   func(ctx *Context) error
}

func (cmd *DoctorCmd) Run(ctx *Context) error {
	ctx.printf("Running diagnostics...\n\n")

	checks := []check{
		{"State database", checkFail, checkStateDB},
		{"Schema version", checkFail, checkSchema},
		{"Clock/timezone", checkFail, checkTimezone},
		{"Keyring", checkFail, checkKeyring},
		{"Habit database", checkWarn, checkHabitDB},
		{"Host application", checkWarn, checkHost},
		{"Consumers", checkWarn, checkConsumers},
		{"Broker", checkWarn, checkBroker},
		{"Daemon", checkWarn, checkDaemon},
	}

	hasError := false
	for _, c := range checks {
		err := c.run(ctx)
		switch {
		case err == nil:
			ctx.printf("%s %s: OK\n", okStyle.Render("✓"), c.name)
		case errors.Is(err, errSkipped):
			ctx.printf("⊘ %s: SKIPPED\n", c.name)
		case c.level == checkWarn:
			ctx.printf("%s %s: WARNING\n   %v\n", warnStyle.Render("⚠"), c.name, err)
		default:
			ctx.printf("%s %s: FAIL\n   Error: %v\n", failStyle.Render("❌"), c.name, err)
			hasError = true
		}
	}

	ctx.printf("\n")
	if hasError {
		ctx.printf("Diagnostics completed with errors.\n")
		return errors.New("one or more health checks failed")
	}
	ctx.printf("All diagnostics passed!\n")
	return nil
}

var errSkipped = errors.New("skipped")

func checkStateDB(ctx *Context) error {
	if err := ctx.Store.Load(); err != nil {
		return err
	}
	_, err := ctx.Store.LastProcessedDate()
	return err
}

func checkSchema(ctx *Context) error {
	current, latest, err := ctx.Store.SchemaVersion()
	if err != nil {
		return err
	}
	if current != latest {
		return fmt.Errorf("schema version %d, expected %d (run 'habitrefresh init')", current, latest)
	}
	return nil
}

func checkTimezone(ctx *Context) error {
	loc, err := ctx.Config.Location()
	if err != nil {
		return err
	}
	if time.Now().In(loc).Year() < 2000 {
		return errors.New("system clock appears to be wrong")
	}
	return nil
}

func checkKeyring(ctx *Context) error {
	if ctx.Config.HabitSource.Driver != config.DriverPostgres {
		return errSkipped
	}
	if !keyring.IsAvailable() {
		return keyring.ErrUnavailable
	}
	if _, err := keyring.GetDSN(ctx.Config.HabitSource.KeyringUser); err != nil {
		return fmt.Errorf("no connection string stored: %w", err)
	}
	return nil
}

func checkHabitDB(ctx *Context) error {
	c, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	session, err := ctx.HabitSource().Open(c)
	if err != nil {
		return fmt.Errorf("%w; refreshes will go through the host application", err)
	}
	return session.Close()
}

func checkHost(ctx *Context) error {
	if _, err := ctx.HostTrigger().Running(); err != nil {
		if errors.Is(err, hostapp.ErrNotRunning) {
			return fmt.Errorf("not running; the fallback will launch %s", ctx.Config.Host.Executable)
		}
		return err
	}
	return nil
}

func checkConsumers(ctx *Context) error {
	n, err := ctx.Store.CountConsumers()
	if err != nil {
		return err
	}
	if n == 0 {
		return errors.New("none registered; the daily wake stays disarmed")
	}
	return nil
}

func checkBroker(ctx *Context) error {
	b := ctx.Config.Broadcast
	if b.Broker == "" {
		return errSkipped
	}
	mqtt, err := notifier.NewMQTTBroadcaster(notifier.MQTTOptions{
		Broker:   b.Broker,
		Topic:    b.Topic,
		ClientID: b.ClientID + "-doctor",
		Username: b.Username,
		Password: b.Password,
	})
	if err != nil {
		return err
	}
	defer mqtt.Close()
	if !mqtt.IsConnected() {
		return fmt.Errorf("connection to %s dropped", b.Broker)
	}
	return nil
}

func checkDaemon(ctx *Context) error {
	client := ctx.daemon()
	if client == nil {
		return errSkipped
	}
	_, err := client.Status(context.Background())
	if errors.Is(err, server.ErrDaemonUnreachable) {
		return errors.New("not running; start it with 'habitrefresh run'")
	}
	return err
}
