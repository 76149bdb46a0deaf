package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/aurora-is-near/stream-events/logging"
)

func main() {
	if len(os.Args) < 2 {
		d, _ := json.MarshalIndent(defaultConfig(), "", "  ")
		_, _ = fmt.Fprintf(os.Stdout, "%s\n", string(d))
		os.Exit(1)
	}

	config, err := loadConfig(os.Args[1])
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}

	logger, err := logging.Setup(config.Log)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error setting up logging: %s\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := config.Bridge.Run(); err != nil {
		logger.Sugar().Errorf("Bridge finished with error: %v", err)
		_ = logger.Sync()
		os.Exit(1)
	}
}
