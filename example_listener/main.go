// This example joins a topic and prints every note it hears. Run the
// netpiano client on another machine pointed at the same broker and topic
// to watch the notes arrive.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/denizsincar29/goerror"

	"netpiano"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	e := goerror.NewError(logger)

	host := "localhost"
	if len(os.Args) > 1 {
		host = os.Args[1]
	}
	client := netpiano.NewClientBuilder().
		WithHost(host).
		WithClientID("listener").
		WithLogger(logger).
		Build()
	defer client.Close()
	err := client.Connect()
	e.Must(err, "Failed to connect to broker")
	logger.Info("Listening", "topic", client.Topic())

	for {
		select {
		case err := <-client.Errors():
			logger.Error("Client error", "error", err)
		case st := <-client.States():
			logger.Info("Connection state changed", "state", st)
			if st.IsDisconnected() {
				return
			}
		case event := <-client.Events():
			pub, ok := event.(netpiano.PublishPacket)
			if !ok {
				continue
			}
			msg, err := pub.Note()
			if err != nil {
				logger.Warn("Undecodable note message", "error", err)
				continue
			}
			fmt.Println(msg.String())
		}
	}
}
