package srv

import (
	"context"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/jitinsharma/sunshine-wear/apimodel"
	"github.com/jitinsharma/sunshine-wear/internal/asset"
	"github.com/jitinsharma/sunshine-wear/internal/datasync"
	"github.com/jitinsharma/sunshine-wear/internal/images"
	"github.com/jitinsharma/sunshine-wear/internal/metrics"
	"github.com/jitinsharma/sunshine-wear/internal/natsync"
	"github.com/jitinsharma/sunshine-wear/internal/scheduler"
	"github.com/jitinsharma/sunshine-wear/internal/srv/config"
	"github.com/jitinsharma/sunshine-wear/internal/srv/device"
	"github.com/jitinsharma/sunshine-wear/internal/srv/displaymode"
	"github.com/jitinsharma/sunshine-wear/internal/srv/event"
	"github.com/jitinsharma/sunshine-wear/internal/version"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

type ServerApp struct {
	*config.ServerConfig
	displayDevice *device.Display
	clockDevice   *device.Clock
	buttonsDevice *device.Buttons
	apiDevice     *device.Api

	registry        *prometheus.Registry
	syncChannel     *datasync.Channel
	renderScheduler *scheduler.Scheduler
	machine         *displaymode.Machine

	lock     sync.RWMutex
	location *time.Location

	// set by the state machine, drawn once the event is handled
	invalidated bool

	renderTicks          chan struct{}
	internalEventChannel chan event.InternalEvent
	ambientTimer         *time.Timer

	// owned by the event loop, bumped on every reset
	ambientGeneration uint64

	cancelSync context.CancelFunc
	stopping   chan struct{}

	eventLoopAskDone chan bool
	eventLoopDone    chan bool
}

func NewServerApp(configDir string, debugMode bool, simulationMode bool) *ServerApp {

	logrus.Debugf("Creation of sunshinewear server %s ...", version.AppVersion.String())

	app := &ServerApp{
		location:             time.Local,
		renderTicks:          make(chan struct{}, 1),
		internalEventChannel: make(chan event.InternalEvent),
		stopping:             make(chan struct{}),
		eventLoopAskDone:     make(chan bool),
		eventLoopDone:        make(chan bool),
		ServerConfig:         config.NewServerConfig(configDir, debugMode, simulationMode),
	}

	app.registry = prometheus.NewRegistry()
	app.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	recorder := metrics.NewPrometheusRecorder(app.registry)

	syncParam := app.SyncParam
	transport := natsync.NewTransport(natsync.Config{
		URL:            syncParam.NatsUrl,
		SubjectPrefix:  syncParam.SubjectPrefix,
		Stream:         syncParam.Stream,
		AssetBucket:    syncParam.AssetBucket,
		ConnectTimeout: syncParam.ConnectTimeoutDuration(),
	})
	app.syncChannel = datasync.NewChannel(transport, datasync.Config{
		Topic: syncParam.Topic,
		Backoff: datasync.BackoffConfig{
			InitialDelay: syncParam.BackoffInitialDuration(),
			MaxDelay:     syncParam.BackoffMaxDuration(),
		},
		Loader: asset.LoaderConfig{
			Timeout:         syncParam.FetchTimeoutDuration(),
			BreakerFailures: syncParam.BreakerFailures,
			BreakerCooldown: syncParam.BreakerCooldownDuration(),
		},
	}, recorder)

	app.renderScheduler = scheduler.New(app.DisplayParam.TickPeriodDuration(), app.onRenderTick, scheduler.WithRecorder(recorder))
	app.machine = displaymode.NewMachine(app.renderScheduler, app)

	app.displayDevice = device.NewDisplay(app.SimulationMode, app.DisplayParam.Contrast)
	app.clockDevice = device.NewClock(device.DefaultLocaltimePath)
	app.buttonsDevice = device.NewButtons(app.SimulationMode)
	if app.ApiParam.Enabled {
		app.apiDevice = device.NewApi(app.ServerConfig, app, promhttp.HandlerFor(app.registry, promhttp.HandlerOpts{}))
	}

	logrus.Debugln("Server created")

	return app
}

func (s *ServerApp) Start() {
	logrus.Printf("Starting sunshinewear server ...")

	logrus.Printf("Starting devices ...")

	// Start display device
	s.displayDevice.Start()

	// Display startup screen
	s.displayDevice.ShowImage(images.IntroImage)
	time.Sleep(2 * time.Second)

	// Start data sync channel
	ctx, cancel := context.WithCancel(context.Background())
	s.cancelSync = cancel
	s.syncChannel.Start(ctx)

	// Face is visible at startup
	s.machine.Handle(event.PlatformEvent{Data: event.PropertiesData{LowBitAmbient: s.DisplayParam.LowBitAmbient}})
	s.machine.Handle(event.PlatformEvent{Data: event.VisibilityData{Visible: true}})
	s.resetAmbientTimer()
	s.redrawIfInvalidated()

	// Start event loop
	go s.eventLoop()

	// Start clock device
	s.clockDevice.Start()

	// Start buttons device
	s.buttonsDevice.Start()

	// Start api device
	if s.apiDevice != nil {
		s.apiDevice.Start()
	}
}

func (s *ServerApp) Stop(halt bool) {
	logrus.Printf("Stopping sunshinewear server ...")
	close(s.stopping)

	// Stop api
	if s.apiDevice != nil {
		s.apiDevice.StopSendingEvent()
	}

	// Stop buttons device
	s.buttonsDevice.StopSendingEvent()

	// Stop clock device
	s.clockDevice.StopSendingEvent()

	// Stop event loop
	logrus.Infof("Stop event loop")
	s.eventLoopAskDone <- true
	<-s.eventLoopDone

	// Stop render scheduler, then data sync
	s.machine.Shutdown()
	s.syncChannel.Stop()
	s.cancelSync()

	// Display end screen
	s.showEndScreen()

	// Stop display device
	s.displayDevice.Stop()

	// Flush state backup
	s.ServerConfig.ServerState.FlushSave()

	logrus.Printf("Server stopped")

	if halt {
		logrus.Printf("System halt")
		haltCmd := exec.Command("sudo", "halt")
		err := haltCmd.Run()
		if err != nil {
			logrus.Panicf("Unable to halt the system: %v", err)
		}
	}
	os.Exit(0)
}

// onRenderTick runs on the scheduler goroutine, a pending tick absorbs the new one
func (s *ServerApp) onRenderTick(time.Time) {
	select {
	case s.renderTicks <- struct{}{}:
	default:
	}
}

func (s *ServerApp) Location() *time.Location {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.location
}

func (s *ServerApp) resetAmbientTimer() {
	if s.ambientTimer != nil {
		s.ambientTimer.Stop()
		s.ambientTimer = nil
	}
	// a timer that already fired may still be waiting to deliver its timeout
	s.ambientGeneration++
	generation := s.ambientGeneration

	after := s.DisplayParam.AmbientAfterDuration()
	if after <= 0 {
		return
	}
	s.ambientTimer = time.AfterFunc(after, func() {
		select {
		case s.internalEventChannel <- event.InternalEvent{Data: event.InternalEventAmbientTimeoutData{Generation: generation}}:
		case <-s.stopping:
		}
	})
}

func (s *ServerApp) redrawIfInvalidated() {
	if s.invalidated {
		s.invalidated = false
		s.refreshDisplay()
	}
}

// Host implementation, called by the state machine from the event loop

func (s *ServerApp) RegisterTimezoneListener() {
	if err := s.clockDevice.WatchTimezone(); err != nil {
		logrus.Warnf("Time zone changes won't be followed: %v", err)
	}
}

func (s *ServerApp) UnregisterTimezoneListener() {
	s.clockDevice.UnwatchTimezone()
}

func (s *ServerApp) ApplyTimezone(tzId string) {
	if tzId == "" {
		tzId = device.SystemTimezone(device.DefaultLocaltimePath)
	}
	location := time.Local
	if tzId != "" {
		var err error
		location, err = time.LoadLocation(tzId)
		if err != nil {
			logrus.Warnf("Keep time zone %s: %v", s.Location(), err)
			return
		}
	}

	s.lock.Lock()
	s.location = location
	s.lock.Unlock()
}

func (s *ServerApp) Invalidate() {
	s.invalidated = true
}

func (s *ServerApp) SetVisible(visible bool) {
	s.displayDevice.SetVisible(visible)
}

func (s *ServerApp) Tapped() {
	inverted := s.ToggleBackground()
	logrus.Debugf("Tap: inverted background %t", inverted)
}

// StatusProvider implementation, called by the api device

func (s *ServerApp) WeatherStatus() apimodel.WeatherStatus {
	status := apimodel.WeatherStatus{Connection: s.syncChannel.State().String()}
	snapshot := s.syncChannel.Latest()
	if snapshot == nil {
		return status
	}
	receivedAt := snapshot.ReceivedAt()
	status.Synced = true
	status.High = snapshot.High()
	status.Low = snapshot.Low()
	status.Time = snapshot.Time()
	status.IconState = snapshot.IconState().String()
	status.Seq = snapshot.Seq()
	status.ReceivedAt = &receivedAt
	return status
}

func (s *ServerApp) DisplayStatus() apimodel.DisplayStatus {
	machineStatus := s.machine.Status()
	schedulerState := s.renderScheduler.State()
	return apimodel.DisplayStatus{
		State:              machineStatus.State.String(),
		Mode:               machineStatus.Mode.String(),
		Visible:            machineStatus.Visible,
		AntiAlias:          machineStatus.AntiAlias,
		LowBitAmbient:      machineStatus.LowBitAmbient,
		InvertedBackground: s.InvertedBackground(),
		Timezone:           s.Location().String(),
		Scheduler: apimodel.SchedulerStatus{
			Running:             schedulerState.Running,
			NextDeadlineEpochMs: schedulerState.NextDeadlineEpochMs,
			Resyncs:             s.renderScheduler.Resyncs(),
		},
	}
}
