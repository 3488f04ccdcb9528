// Command mmbridge reads the meter's uplink from a serial port and forwards
// the readings to the console and/or an MQTT broker.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/itohio/gomm/pkg/config"
	"github.com/itohio/gomm/pkg/link"
	"github.com/itohio/gomm/pkg/output"
	"github.com/itohio/gomm/pkg/output/console"
	"github.com/itohio/gomm/pkg/output/mqtt"
	"github.com/itohio/gomm/pkg/uplink"
)

func main() {
	var (
		configFlag  = flag.String("config", "config.yaml", "Configuration file path")
		portFlag    = flag.String("p", "", "Serial port override (e.g., COM3 or /dev/ttyACM0)")
		outputsFlag = flag.String("outputs", "console", "Comma separated outputs: console, mqtt")
		listFlag    = flag.Bool("list", false, "List serial ports and exit")
	)
	flag.Parse()

	if *listFlag {
		ports, err := link.Ports()
		if err != nil {
			log.Fatalf("%v", err)
		}
		for _, p := range ports {
			fmt.Println(p.Name)
		}
		return
	}

	// Load configuration
	cfg, err := config.Load(*configFlag)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Override serial port if provided via command line
	if *portFlag != "" {
		cfg.Uplink.Port = *portFlag
	}
	if cfg.Uplink.Port == "" {
		log.Fatalf("No serial port configured, use -p or uplink.port")
	}

	outputs, err := openOutputs(cfg, strings.Split(*outputsFlag, ","))
	if err != nil {
		log.Fatalf("Failed to open outputs: %v", err)
	}
	defer closeOutputs(outputs)

	l := link.New(cfg.Uplink.Port, cfg.Uplink.BaudRate, 0)
	if err := l.Connect(true); err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	defer l.Close()
	log.Printf("Reading uplink from %s at %d baud", cfg.Uplink.Port, cfg.Uplink.BaudRate)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	forward(ctx, l.Packets(), outputs)
}

// forward publishes packets to every output until the channel closes or ctx is done.
// A failing output is logged and does not stop the others.
func forward(ctx context.Context, packets <-chan uplink.Packet, outputs []output.Output) {
	for {
		select {
		case <-ctx.Done():
			return
		case p, ok := <-packets:
			if !ok {
				return
			}
			for _, out := range outputs {
				if err := out.Publish(p); err != nil {
					log.Printf("Failed to publish: %v", err)
				}
			}
		}
	}
}

func openOutputs(cfg *config.Config, names []string) ([]output.Output, error) {
	var outputs []output.Output
	for _, name := range names {
		var (
			out output.Output
			err error
		)
		switch strings.TrimSpace(name) {
		case "":
			continue
		case "console":
			out = console.NewConsole(os.Stdout)
		case "mqtt":
			out, err = mqtt.NewMQTT(cfg.MQTT)
		default:
			err = fmt.Errorf("unknown output: %s", name)
		}
		if err != nil {
			closeOutputs(outputs)
			return nil, err
		}
		outputs = append(outputs, out)
	}
	if len(outputs) == 0 {
		return nil, fmt.Errorf("no outputs selected")
	}
	return outputs, nil
}

func closeOutputs(outputs []output.Output) {
	for _, out := range outputs {
		if err := out.Close(); err != nil {
			log.Printf("Error closing output: %v", err)
		}
	}
}
