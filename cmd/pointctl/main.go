// Command pointctl talks to a telescope mount.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/seeing-things/point/internal/config"
	"github.com/seeing-things/point/internal/logging"
)

type options struct {
	config    string
	protocol  string
	transport string
	device    string
	remote    string
	local     string
	simulate  bool
	verbose   bool
}

func usage() {
	fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] <status|console|latency|ports>\n\n", os.Args[0])
	flag.PrintDefaults()
}

func main() {
	var opts options

	flag.StringVar(&opts.config, "config", "", "TOML configuration file")
	flag.StringVar(&opts.protocol, "protocol", "", "mount protocol: nexstar or gemini")
	flag.StringVar(&opts.transport, "transport", "", "transport: serial, udp or tcp")
	flag.StringVar(&opts.device, "device", "", "serial device")
	flag.StringVar(&opts.remote, "remote", "", "address of the mount")
	flag.StringVar(&opts.local, "local", "", "local UDP address")
	flag.BoolVar(&opts.simulate, "simulate", false, "talk to a simulated mount")
	flag.BoolVar(&opts.verbose, "v", false, "log wire traffic")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() < 1 {
		usage()
		os.Exit(2)
	}

	cfg, err := loadConfig(opts)

	if err != nil {
		log.Fatalf("Unable to load configuration: %v", err)
	}

	if opts.verbose {
		cfg.LogLevel = "debug"
	}

	logging.Configure(cfg.LogLevel)

	args := flag.Args()

	switch args[0] {
	case "ports":
		err = listPorts()
	case "status":
		err = withMount(cfg, opts.simulate, status)
	case "console":
		err = withMount(cfg, opts.simulate, console)
	case "latency":
		err = latencyCommand(cfg, opts.simulate, args[1:])
	default:
		usage()
		os.Exit(2)
	}

	if err != nil {
		log.Fatalf("Command %s failed: %v", args[0], err)
	}
}

// loadConfig reads the configuration file, if any, and applies the flags on
// top of it.
func loadConfig(opts options) (config.Config, error) {
	cfg := config.Default(strings.ToLower(opts.protocol))

	if opts.config != "" {
		var err error

		cfg, err = config.Load(opts.config)

		if err != nil {
			return config.Config{}, err
		}
	}

	if opts.protocol != "" {
		cfg.Protocol = strings.ToLower(opts.protocol)
	}

	if opts.transport != "" {
		cfg.Transport = strings.ToLower(opts.transport)
	}

	if opts.device != "" {
		cfg.Device = opts.device
	}

	if opts.remote != "" {
		cfg.Remote = opts.remote
	}

	if opts.local != "" {
		cfg.Local = opts.local
	}

	return cfg, cfg.Validate()
}
