package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jrockway/dice-clock/control/clock"
	"github.com/jrockway/dice-clock/control/config"
	"github.com/jrockway/dice-clock/control/input"
	"github.com/jrockway/dice-clock/control/led"
	"github.com/jrockway/dice-clock/control/orientation"
	"github.com/jrockway/dice-clock/control/readings"
	"github.com/jrockway/dice-clock/control/render"
	"github.com/jrockway/dice-clock/control/rtc"
	"github.com/jrockway/dice-clock/control/scheduler"
	"github.com/jrockway/dice-clock/control/screen"
	"github.com/jrockway/dice-clock/control/sensors"
	"github.com/jrockway/dice-clock/control/status"
	"github.com/jrockway/periphflag"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	_ "golang.org/x/net/trace" // registers /debug/events and /debug/requests
	"periph.io/x/extra/hostextra"
	"periph.io/x/host/v3"
)

var spi string

func main() {
	// hostextra registers the buses that periphflag validates against; host/v3 registers the
	// ones the drivers open.
	if _, err := hostextra.Init(); err != nil {
		log.Fatalf("init periph.io: %v", err)
	}
	if _, err := host.Init(); err != nil {
		log.Fatalf("init periph.io host: %v", err)
	}
	periphflag.SPIDevVar(&spi, "display-spi", "", "spi bus that the display is on; empty to use i2c")
	cfg, err := config.Load(flag.CommandLine, os.Args[1:])
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if spi != "" {
		cfg.Display.SPI = spi
	}

	hw, err := openHardware(cfg)
	if err != nil {
		log.Fatalf("init hardware: %v", err)
	}
	if set, err := rtc.EnsureInitialized(hw.rtc, rtc.DefaultTime); err != nil {
		log.Printf("check rtc: %v", err)
	} else if set {
		log.Printf("rtc was never set; starting from %v", rtc.DefaultTime)
	}

	scr, err := screen.NewScreen(hw.display)
	if err != nil {
		log.Fatalf("init screen: %v", err)
	}
	if err := scr.Blank(); err != nil {
		log.Printf("blank screen: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	sched := scheduler.New(time.Now)
	cache := new(readings.Cache)
	page := new(status.Page)
	var (
		ctrl     *clock.Controller
		renderer *render.Renderer
	)
	renderTask := sched.Register("render", func() {
		d := renderer.Render()
		sched.PlanCurrentRelative(d)
		updateStatus(page, scr, ctrl, hw.rtc, cache, d)
	})
	ctrl = clock.New(hw.rtc, sched.Handle(renderTask))
	renderer = render.New(scr, ctrl, hw.rtc, cache, hw.perf)
	dispatcher := input.NewDispatcher(ctrl, sched.Handle(renderTask))
	monitor := orientation.NewMonitor(ctrl)
	sched.PlanNow(renderTask)

	post := func(fn func()) { sched.Post(ctx, fn) }
	if hw.statusLED != nil {
		goLogged("status led", func() error {
			return led.Pulse(ctx, hw.statusLED, led.BootPulse)
		})
	}
	if hw.thermometer != nil {
		goLogged("temperature", func() error {
			return sensors.Poll(ctx, "temperature", cfg.Thermometer.Interval, hw.thermometer.Temperature, func(c float64) {
				post(func() { cache.SetTemperature(c) })
			})
		})
	}
	if hw.battery != nil {
		goLogged("battery", func() error {
			return sensors.Poll(ctx, "battery", cfg.Battery.Interval, hw.battery.Voltage, func(v float64) {
				post(func() { cache.SetVoltage(v) })
			})
		})
	}
	if hw.accelerometer != nil {
		goLogged("accelerometer", func() error {
			return sensors.Poll(ctx, "accelerometer", cfg.Accelerometer.Interval, hw.accelerometer.Acceleration, func(v orientation.Vector) {
				post(func() { monitor.Feed(v) })
			})
		})
	}
	if hw.buttons != nil {
		goLogged("buttons", func() error {
			return hw.buttons.Run(ctx, func(g input.Gesture) {
				post(func() { dispatcher.Handle(g) })
			})
		})
	}

	httpDoneCh := make(chan error)
	var httpServer *http.Server
	if cfg.Debug != "" {
		http.Handle("/", page)
		http.Handle("/display.png", scr)
		http.Handle("/metrics", promhttp.Handler())
		httpServer = &http.Server{Addr: cfg.Debug}
		go func() {
			log.Printf("http server listening on %s", httpServer.Addr)
			err := httpServer.ListenAndServe()
			select {
			case httpDoneCh <- err:
			case <-ctx.Done():
			}
			close(httpDoneCh)
		}()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	loopDoneCh := make(chan error)
	go func() {
		err := sched.Run(ctx)
		select {
		case loopDoneCh <- err:
		case <-ctx.Done():
		}
		close(loopDoneCh)
	}()

	httpAlive := httpServer != nil
	select {
	case err := <-httpDoneCh:
		log.Printf("http server died: %v", err)
		httpAlive = false
	case err := <-loopDoneCh:
		log.Printf("scheduler loop died: %v", err)
	case <-sigCh:
		log.Printf("interrupt")
	}
	signal.Stop(sigCh)
	cancel()
	if err := blankWhenIdle(loopDoneCh, scr, time.Second); err != nil {
		log.Printf("blank screen: %v", err)
	}
	hw.Close()
	if httpAlive {
		tctx, c := context.WithTimeout(context.Background(), time.Second)
		httpServer.Shutdown(tctx)
		c()
	}
	os.Exit(1)
}

// idleScreen is what shutdown needs from the screen.
type idleScreen interface {
	Ready() bool
	Blank() error
}

// blankWhenIdle blanks scr once nothing can draw on it any more: the scheduler loop, which owns the
// screen, has returned and closed loopDone, and the last frame has reached the display or timeout
// has passed.
func blankWhenIdle(loopDone <-chan error, scr idleScreen, timeout time.Duration) error {
	for range loopDone {
	}
	for deadline := time.Now().Add(timeout); !scr.Ready() && time.Now().Before(deadline); {
		time.Sleep(10 * time.Millisecond)
	}
	return scr.Blank()
}

// goLogged runs fn in the background and logs how it ended, unless it ended because the program
// is shutting down.
func goLogged(name string, fn func() error) {
	go func() {
		if err := fn(); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("%s: %v", name, err)
		}
	}()
}

// updateStatus copies the clock's state to the debug page.  It runs on the scheduler goroutine.
func updateStatus(page *status.Page, scr *screen.Screen, ctrl *clock.Controller, src rtc.Source, cache *readings.Cache, next time.Duration) {
	s := status.Status{
		ClockFace:  scr.Frame(),
		State:      ctrl.Snapshot(),
		NextRender: next,
	}
	if now, err := src.Now(); err == nil {
		s.Now = now
		s.Elapsed = ctrl.StopwatchElapsed(now)
	}
	if ok, err := src.Initialized(); err == nil {
		s.RTCInitialized = ok
	}
	s.Temperature, s.HasTemperature = cache.Temperature()
	s.Voltage, s.HasVoltage = cache.Voltage()
	page.Update(s)
}
