// This example plays over the network from a hardware MIDI keyboard, no
// terminal UI involved. Run with "list" to see the available input ports,
// or with a port name (and optionally a broker host) to start playing.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/denizsincar29/goerror"

	"netpiano"
	"netpiano/midiinput"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	e := goerror.NewError(logger)

	if len(os.Args) > 1 && os.Args[1] == "list" {
		ports, err := midiinput.Ports()
		e.Must(err, "Failed to list MIDI inputs")
		for _, p := range ports {
			fmt.Println(p)
		}
		return
	}

	portName := ""
	host := "localhost"
	if len(os.Args) > 1 {
		portName = os.Args[1]
	}
	if len(os.Args) > 2 {
		host = os.Args[2]
	}

	client := netpiano.NewClientBuilder().
		WithHost(host).
		WithClientID("midi").
		WithLogger(logger).
		Build()
	session := netpiano.NewSession(client, nil, logger)
	defer session.Close()
	err := session.Start()
	e.Must(err, "Failed to connect to broker")

	adapter, err := midiinput.Open(portName, session, logger)
	e.Must(err, "Failed to open MIDI input")
	defer adapter.Close()
	logger.Info("Playing", "port", adapter.Port(), "topic", client.Topic())

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	for {
		select {
		case <-interrupt:
			logger.Info("Interrupted, releasing held notes")
			return
		case err := <-client.Errors():
			logger.Error("Client error", "error", err)
		case res := <-client.Results():
			if res.Err != nil {
				logger.Warn("Publish not acked", "id", res.ID, "error", res.Err)
			}
		case <-client.Events():
			// notes from others; nothing to render here
		}
	}
}
