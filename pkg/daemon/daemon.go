package daemon

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/powerlab/wattlog/pkg/capture"
	"github.com/powerlab/wattlog/pkg/config"
	"github.com/powerlab/wattlog/pkg/events"
	"github.com/powerlab/wattlog/pkg/probe"
	"github.com/powerlab/wattlog/pkg/scheduler"
)

var (
	conf  config.Config
	hub   *events.Hub
	ctrl  *capture.Controller
	sched *scheduler.Scheduler
)

func setupRoutes() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(ginLogger(logrus.StandardLogger()))
	router.GET("/status", getStatus)
	router.POST("/start", postStart)
	router.POST("/stop", postStop)
	router.POST("/reseal", postReseal)
	router.GET("/snapshot", getSnapshot)
	router.GET("/windows", getWindows)
	router.GET("/files", getFiles)
	router.GET("/devices", getDevices)
	router.GET("/config", getConfig)
	router.PUT("/window-seconds", setWindowSeconds)
	router.GET("/schedule", getSchedule)
	router.PUT("/schedule", setSchedule)
	router.DELETE("/schedule", deleteSchedule)
	router.GET("/events", getEvents)
	router.GET("/version", getVersion)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return router
}

// captureOptions derives per-session capture options from the live config,
// so a SIGHUP config reload applies to the next session.
func captureOptions(conf config.Config) capture.Options {
	period := 100 * time.Millisecond
	if hint := conf.SampleRateHint(); hint > 0 {
		period = time.Duration(float64(time.Second) / hint)
	}

	return capture.Options{
		WindowDuration: time.Duration(conf.WindowSeconds()) * time.Second,
		RingCapacity:   conf.RingCapacity(),
		LogDir:         conf.LogDir(),
		SamplePeriod:   period,
	}
}

func Run(configPath string, unixSocketPath string, allowNonRoot bool) error {
	router := setupRoutes()

	var err error
	conf, err = config.NewFile(configPath)
	if err != nil {
		logrus.Fatalf("failed to parse config during startup: %v", err)
	}
	logrus.WithFields(conf.LogrusFields()).Infof("config loaded")

	// Receive SIGHUP to reload config
	go func() {
		sigc := make(chan os.Signal, 1)
		signal.Notify(sigc, syscall.SIGHUP)
		for range sigc {
			err := conf.Load()
			if err != nil {
				logrus.Errorf("failed to reload config: %v", err)
				continue
			}
			logrus.Infof("config reloaded")
		}
	}()

	hub = events.NewHub()
	dev := probe.NewSim(conf.SampleRateHint())
	ctrl = capture.NewController(dev, hub)

	sched = scheduler.New(scheduledStart, func(msg string) {
		hub.Publish(events.ScheduleError, msg)
	})
	sched.Start()

	srv := &http.Server{
		Handler: router,
	}

	// Create the socket to listen on:
	l, err := net.Listen("unix", unixSocketPath)
	if err != nil {
		logrus.Fatal(err)
	}

	if conf.AllowNonRootAccess() || allowNonRoot {
		logrus.Infof("non-root access is allowed, changing permissions of %s to 0777", unixSocketPath)
		err = os.Chmod(unixSocketPath, 0777)
		if err != nil {
			logrus.Fatal(err)
		}
	}

	// Serve HTTP on unix socket
	go func() {
		logrus.Infof("http server listening on %s", l.Addr().String())
		if err := srv.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Fatal(err)
		}
	}()

	// Optional TCP listener for web clients (live charts, SSE, metrics).
	if addr := conf.ListenAddress(); addr != "" {
		tl, err := net.Listen("tcp", addr)
		if err != nil {
			logrus.Fatal(err)
		}
		go func() {
			logrus.Infof("http server listening on %s", tl.Addr().String())
			if err := srv.Serve(tl); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logrus.Fatal(err)
			}
		}()
	}

	// Handle common process-killing signals, so we can gracefully shut down:
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	// Wait for a SIGINT or SIGTERM:
	sig := <-sigc
	logrus.Infof("caught signal \"%s\": shutting down.", sig)

	logrus.Info("shutting down http server")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	err = srv.Shutdown(ctx)
	if err != nil {
		logrus.Errorf("failed to shutdown http server: %v", err)
	}
	cancel()

	logrus.Info("stopping capture scheduler")
	sched.Stop()

	// Stop the capture session so the partial window is sealed before exit.
	if err := ctrl.Stop(); err != nil && !errors.Is(err, capture.ErrNotRunning) {
		logrus.Errorf("failed to stop capture before exiting: %v", err)
	}

	logrus.Info("exiting")
	return nil
}

// scheduledStart is the scheduler task. A session already running at the
// scheduled time is not an error; the schedule simply yields.
func scheduledStart() error {
	err := ctrl.Start(captureOptions(conf))
	if errors.Is(err, capture.ErrAlreadyRunning) || errors.Is(err, capture.ErrBusy) {
		logrus.Info("scheduled capture start skipped, session already active")
		return nil
	}
	return err
}
