package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"classboard/internal/clientview"
	"classboard/internal/config"
)

// A terminal client that watches the live-class state for one user: it
// prints the join prompt when a class the user is invited to goes live and
// a notice when it ends. Useful for poking at a running server without the
// web frontend.
func main() {
	server := flag.String("server", "http://localhost:8080", "API base URL")
	userID := flag.String("user", "", "user ID to watch as")
	flag.Parse()

	if *userID == "" {
		log.Fatal("classboard-client: -user is required")
	}

	cfg := config.LoadFromEnv()

	wsURL := "ws" + strings.TrimPrefix(*server, "http") + "/ws"

	view := clientview.NewView(*server, wsURL, *userID, cfg.Client.PollInterval, clientview.Callbacks{
		ClassStarted: func(meetingID, message string) {
			log.Printf("%s (meeting %s)", message, meetingID)
		},
		ClassEnded: func() {
			log.Printf("Live class has ended")
		},
	})

	view.Start(context.Background())
	defer view.Stop()

	session := view.Session()
	if session.IsActive {
		log.Printf("A class is already live: meeting=%s", session.MeetingID)
	} else {
		log.Printf("No class live, watching for changes: user=%s poll=%s", *userID, cfg.Client.PollInterval)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
}
