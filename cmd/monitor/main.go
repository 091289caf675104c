package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"newsbot/monitor"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	defaultURL := "http://localhost:8080"
	if v := os.Getenv("NEWSBOT_URL"); v != "" {
		defaultURL = v
	}
	baseURL := flag.String("url", defaultURL, "newsbot admin API URL")
	refresh := flag.Duration("refresh", monitor.DefaultRefresh, "status refresh interval")
	flag.Parse()

	program := tea.NewProgram(monitor.NewModel(*baseURL, *refresh))

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		program.Quit()
	}()

	if _, err := program.Run(); err != nil {
		fmt.Printf("Error running program: %v\n", err)
		os.Exit(1)
	}
}
