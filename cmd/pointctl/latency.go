package main

import (
	"flag"
	"fmt"
	"math"
	"time"

	"github.com/seeing-things/point/gemini"
	"github.com/seeing-things/point/internal/config"
	"github.com/seeing-things/point/nexstar"
)

// probeSlewRate is the Gemini slew rate of the latency probes, in degrees
// per second. It is non-zero so that every slew sends a divisor.
const probeSlewRate = 0.001

// probe is one timed command.
type probe struct {
	name string
	run  func() error
}

func latencyCommand(cfg config.Config, simulate bool, args []string) error {
	flags := flag.NewFlagSet("latency", flag.ContinueOnError)
	n := flags.Int("n", 100, "trials per command")

	err := flags.Parse(args)

	if err != nil {
		return err
	}

	if *n <= 0 {
		return fmt.Errorf("need at least one trial, got %d", *n)
	}

	return withMount(cfg, simulate, func(m *mount) error {
		for _, p := range probes(m) {
			fmt.Printf("Testing %s latency...\n", p.name)

			samples, err := measure(p, *n)

			if err != nil {
				return err
			}

			mean, stddev := meanStddev(samples)

			fmt.Printf("Mean: %.3f ms\n", mean)
			fmt.Printf("Standard deviation: %.3f ms\n", stddev)
		}

		return halt(m)
	})
}

func probes(m *mount) []probe {
	if m.gemini != nil {
		return []probe{
			{"get RA", func() error {
				_, err := m.gemini.GetRA()
				return err
			}},
			{"get Dec", func() error {
				_, err := m.gemini.GetDec()
				return err
			}},
			{"slew RA", func() error {
				_, err := m.gemini.Slew(gemini.AxisRA, probeSlewRate)
				return err
			}},
			{"slew Dec", func() error {
				_, err := m.gemini.Slew(gemini.AxisDec, probeSlewRate)
				return err
			}},
		}
	}

	return []probe{
		{"get position", func() error {
			_, _, err := m.nexstar.GetAzAlt(nexstar.Precise)
			return err
		}},
		{"slew", func() error {
			return m.nexstar.SlewVariable(nexstar.DeviceAzmRA, 0)
		}},
	}
}

// halt stops the axes moved by the probes.
func halt(m *mount) error {
	if m.gemini == nil {
		return nil
	}

	for _, axis := range []gemini.Axis{gemini.AxisRA, gemini.AxisDec} {
		_, err := m.gemini.Slew(axis, 0)

		if err != nil {
			return err
		}
	}

	return nil
}

// measure runs p n times and returns the durations in milliseconds.
func measure(p probe, n int) ([]float64, error) {
	samples := make([]float64, 0, n)

	for i := 0; i < n; i++ {
		start := time.Now()

		err := p.run()

		if err != nil {
			return nil, err
		}

		ms := float64(time.Since(start)) / float64(time.Millisecond)
		samples = append(samples, ms)

		fmt.Printf("\t%d: %.3f ms\n", i, ms)
	}

	return samples, nil
}

// meanStddev returns the mean and population standard deviation.
func meanStddev(samples []float64) (float64, float64) {
	if len(samples) == 0 {
		return 0, 0
	}

	var sum float64

	for _, s := range samples {
		sum += s
	}

	mean := sum / float64(len(samples))

	var squares float64

	for _, s := range samples {
		squares += (s - mean) * (s - mean)
	}

	return mean, math.Sqrt(squares / float64(len(samples)))
}
