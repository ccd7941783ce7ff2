// netpiano is a terminal piano client: press letter keys (or a MIDI
// keyboard) and the notes are published to everyone on the same broker
// topic.
package main

import (
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/denizsincar29/goerror"
	"github.com/urfave/cli"

	"netpiano"
	"netpiano/midiinput"
	"netpiano/prefs"
)

var version = "dev"

func main() {
	app := cli.NewApp()
	app.Name = "netpiano"
	app.Usage = "play piano over the network from your terminal"
	app.Version = version
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "host",
			Usage: "broker host (overrides the saved preference)",
		},
		cli.StringFlag{
			Name:  "port",
			Usage: "broker port (overrides the saved preference)",
		},
		cli.StringFlag{
			Name:  "topic,t",
			Usage: "topic to join (overrides the saved preference)",
		},
		cli.StringFlag{
			Name:  "name,n",
			Usage: "client id shown to the broker (default: generated per session)",
		},
		cli.StringFlag{
			Name:  "log,l",
			Usage: "write a debug log to this file",
		},
		cli.StringFlag{
			Name:  "midi,m",
			Usage: "also take input from the MIDI port matching this name",
		},
		cli.BoolFlag{
			Name:  "tls",
			Usage: "dial the broker over TLS",
		},
	}
	app.Action = run
	if err := app.Run(os.Args); err != nil {
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	logger, closeLog, err := NewLogger(c.String("log"))
	if err != nil {
		return err
	}
	defer closeLog()
	e := goerror.NewError(logger)

	p, err := prefs.New(prefs.Config{})
	e.Must(err, "Failed to open preferences")

	host, port := "localhost", netpiano.DEFAULT_PORT
	if h, pt, ok := p.Broker(); ok {
		host, port = h, pt
	}
	topic := netpiano.DefaultTopic
	if t, ok := p.Topic(); ok {
		topic = t
	}
	if c.String("host") != "" {
		host = c.String("host")
	}
	if c.String("port") != "" {
		port = c.String("port")
	}
	if c.String("topic") != "" {
		topic = c.String("topic")
	}
	// Whatever we end up connecting with becomes the new default.
	if err := p.SetBroker(host, port); err != nil {
		logger.Warn("Failed to save broker preference", "error", err)
	}
	if err := p.SetTopic(topic); err != nil {
		logger.Warn("Failed to save topic preference", "error", err)
	}

	cb := netpiano.NewClientBuilder().
		WithHost(host).
		WithPort(port).
		WithTopic(topic).
		WithClientID(c.String("name")).
		WithLogger(logger)
	if c.Bool("tls") {
		cb = cb.WithTLS(nil)
	}
	client := cb.Build()

	session := netpiano.NewSession(client, nil, logger)
	defer session.Close()
	if v, ok := p.Volume(); ok {
		session.SetVolume(v)
	}
	if err := session.Start(); err != nil {
		logger.Error("Initial connect failed, staying offline", "error", err)
	}

	if name := c.String("midi"); name != "" {
		adapter, err := midiinput.Open(name, session, logger)
		e.Must(err, "Failed to open MIDI input")
		defer adapter.Close()
	}

	program := tea.NewProgram(newModel(session, p), tea.WithAltScreen(), tea.WithReportFocus())
	_, err = program.Run()
	e.Must(err, "Terminal UI crashed")
	return nil
}
