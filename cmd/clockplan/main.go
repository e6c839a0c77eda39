// Command clockplan solves an STM32F0 clock request on the host and prints
// the register fields, the frozen bus frequencies and the I²C TIMINGR
// values they imply. It exits non-zero when the solved tree misses the
// request by more than the tolerance.
//
//	clockplan --hse 8MHz --sysclk 48MHz --pclk 24MHz
//	clockplan --config board.json
package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"f0hal-go/config"
	"f0hal-go/errcode"
	"f0hal-go/i2c"
	"f0hal-go/rcc"
)

type options struct {
	config    string
	hse       string
	hsi48     bool
	sysclk    string
	hclk      string
	pclk      string
	tolerance uint32
	verbose   bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var o options
	cmd := &cobra.Command{
		Use:           "clockplan",
		Short:         "Solve an STM32F0 clock request",
		Long:          "Solve PLL multiplier, bus prescalers and flash latency for a clock request and report what the hardware would run at.",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			log := newLogger(cmd.ErrOrStderr(), o.verbose)
			b, err := o.board(cmd)
			if err != nil {
				log.WithError(err).Error("bad request")
				return err
			}
			c, err := b.RCC()
			if err != nil {
				log.WithError(err).Error("bad clock config")
				return err
			}
			log.WithFields(logrus.Fields{
				"source": b.Clock.Source,
				"sysclk": b.Clock.SysClk,
				"hclk":   b.Clock.HClk,
				"pclk":   b.Clock.PClk,
			}).Debug("solving")
			p := c.Solve()
			report(cmd.OutOrStdout(), p)
			if err := p.Check(b.Clock.TolerancePPM); err != nil {
				log.WithError(err).WithField("tolerance_ppm", b.Clock.TolerancePPM).Error("plan rejected")
				return err
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVarP(&o.config, "config", "c", "", "board JSON file to start from")
	f.StringVar(&o.hse, "hse", "", "external crystal frequency (e.g. 8MHz)")
	f.BoolVar(&o.hsi48, "hsi48", false, "run from the 48 MHz internal oscillator")
	f.StringVar(&o.sysclk, "sysclk", "", "requested SYSCLK")
	f.StringVar(&o.hclk, "hclk", "", "requested AHB clock")
	f.StringVar(&o.pclk, "pclk", "", "requested APB clock")
	f.Uint32VarP(&o.tolerance, "tolerance", "t", 0, "allowed deviation in ppm")
	f.BoolVarP(&o.verbose, "verbose", "v", false, "log the request before solving")
	cmd.MarkFlagsMutuallyExclusive("hse", "hsi48")
	return cmd
}

func newLogger(w io.Writer, verbose bool) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(w)
	l.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	if verbose {
		l.SetLevel(logrus.DebugLevel)
	}
	return l
}

// board loads the starting board and lays the flags that were given on top.
// Without --config the start is a bare HSI request, not config.Default.
func (o *options) board(cmd *cobra.Command) (config.Board, error) {
	b := config.Board{Target: config.Default().Target}
	if o.config != "" {
		raw, err := os.ReadFile(o.config)
		if err != nil {
			return b, err
		}
		if b, err = config.Parse(raw); err != nil {
			return b, err
		}
	}
	f := cmd.Flags()
	if f.Changed("hse") {
		v, err := parseHz(o.hse)
		if err != nil {
			return b, err
		}
		b.Clock.Source, b.Clock.HSE = "hse", v
	}
	if o.hsi48 {
		b.Clock.Source = "hsi48"
	}
	for _, s := range []struct {
		name string
		val  string
		dst  *uint32
	}{
		{"sysclk", o.sysclk, &b.Clock.SysClk},
		{"hclk", o.hclk, &b.Clock.HClk},
		{"pclk", o.pclk, &b.Clock.PClk},
	} {
		if !f.Changed(s.name) {
			continue
		}
		v, err := parseHz(s.val)
		if err != nil {
			return b, err
		}
		*s.dst = v
	}
	if f.Changed("tolerance") {
		b.Clock.TolerancePPM = o.tolerance
	}
	return b, nil
}

// parseHz accepts plain Hz or a k/M suffix, with or without "Hz".
func parseHz(s string) (uint32, error) {
	t := strings.TrimSuffix(strings.TrimSpace(s), "Hz")
	t = strings.TrimSuffix(t, "hz")
	mul := uint64(1)
	switch {
	case strings.HasSuffix(t, "M"):
		mul, t = 1_000_000, strings.TrimSuffix(t, "M")
	case strings.HasSuffix(t, "k"), strings.HasSuffix(t, "K"):
		mul, t = 1_000, t[:len(t)-1]
	}
	v, err := strconv.ParseUint(t, 10, 32)
	if err != nil || v*mul > 0xffff_ffff {
		return 0, errcode.New(errcode.InvalidParams, "clockplan", "frequency "+strconv.Quote(s))
	}
	return uint32(v * mul), nil
}

func report(w io.Writer, p rcc.Plan) {
	c := p.Clocks
	fmt.Fprintf(w, "source    %s %d Hz\n", p.Source, p.SourceFreq)
	if p.PLL {
		fmt.Fprintf(w, "pll       x%d\n", p.PLLMul)
	} else {
		fmt.Fprintf(w, "pll       off\n")
	}
	fmt.Fprintf(w, "sysclk    %d Hz\n", c.SysClk())
	fmt.Fprintf(w, "hclk      %d Hz (/%d, HPRE=%04b)\n", c.HClk(), c.SysClk()/c.HClk(), p.HPRE)
	fmt.Fprintf(w, "pclk      %d Hz (/%d, PPRE=%03b)\n", c.PClk(), c.HClk()/c.PClk(), p.PPRE)
	fmt.Fprintf(w, "timer     %d Hz\n", c.TimerClk())
	fmt.Fprintf(w, "latency   %d\n", p.Latency)
	for _, d := range p.Deviations() {
		fmt.Fprintf(w, "deviation %s requested %d Hz, got %d Hz (%d ppm)\n", d.Bus, d.Requested, d.Achieved, d.PPM)
	}
	for _, k := range []struct {
		name string
		clk  rcc.Hertz
	}{{"hsi", rcc.HSI}, {"sysclk", c.SysClk()}} {
		fmt.Fprintf(w, "i2c %-6s", k.name)
		for _, m := range []struct {
			name string
			freq rcc.Hertz
		}{{"standard", i2c.Standard}, {"fast", i2c.Fast}} {
			t, err := i2c.Timing(k.clk, m.freq)
			if err != nil {
				fmt.Fprintf(w, " %s=n/a", m.name)
				continue
			}
			fmt.Fprintf(w, " %s=0x%08x", m.name, t)
		}
		fmt.Fprintln(w)
	}
}
