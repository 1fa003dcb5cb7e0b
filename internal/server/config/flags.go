package config

import (
	"flag"
	"fmt"
	"time"

	"github.com/nazarriya/chatrelay/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags:
//
//	-a string   REST bind address (e.g. ":8000")
//	-g string   gRPC health bind address; "" disables it
//	-d string   PostgreSQL DSN
//	-s string   token signing secret
//	-p string   token profile: production | development
//	-t int      production token lifetime, minutes
//	-D int      development token lifetime, minutes
//	-r string   relay URL
//	-w int      relay timeout, seconds
//	-l string   log level
//
// Arguments are first filtered with flagx.FilterArgs so the JSON config flag
// and anything else on the command line does not trip the parser.
func parseFlags(config *Config, args []string) error {
	args = flagx.FilterArgs(args, []string{"-a", "-g", "-d", "-s", "-p", "-t", "-D", "-r", "-w", "-l"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrHTTP, "a", config.EndpointAddrHTTP, "address and port of the REST API")
	fs.StringVar(&config.EndpointAddrGRPC, "g", config.EndpointAddrGRPC, "address and port of the gRPC health service")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "token signing secret")
	fs.StringVar(&config.TokenProfile, "p", config.TokenProfile, "token profile (production|development)")
	fs.StringVar(&config.RelayURL, "r", config.RelayURL, "relay URL")
	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")

	prod := fs.Int("t", int(config.ProductionTokenLifetime.Minutes()), "production token lifetime (in minutes)")
	dev := fs.Int("D", int(config.DevelopmentTokenLifetime.Minutes()), "development token lifetime (in minutes)")
	relayTimeout := fs.Int("w", int(config.RelayTimeout.Seconds()), "relay timeout (in seconds)")

	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("parse flags: %w", err)
	}

	set := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })

	if set["t"] {
		config.ProductionTokenLifetime = time.Duration(*prod) * time.Minute
	}
	if set["D"] {
		config.DevelopmentTokenLifetime = time.Duration(*dev) * time.Minute
	}
	if set["w"] {
		config.RelayTimeout = time.Duration(*relayTimeout) * time.Second
	}
	return nil
}
