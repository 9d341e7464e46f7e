package device

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/go-co-op/gocron/v2"
	"github.com/jitinsharma/sunshine-wear/internal/srv/event"
	"github.com/sirupsen/logrus"
)

const DefaultLocaltimePath = "/etc/localtime"

// Clock emits a time tick at the start of every minute and, while
// watching, the new time zone when the system one changes.
type Clock struct {
	lock         sync.Mutex
	eventChannel chan event.PlatformEvent

	localtimePath string
	scheduler     gocron.Scheduler

	watcher   *fsnotify.Watcher
	watchStop chan bool
	watchDone chan bool

	askDone chan bool
}

func NewClock(localtimePath string) *Clock {
	return &Clock{
		eventChannel:  make(chan event.PlatformEvent),
		localtimePath: localtimePath,
		askDone:       make(chan bool),
	}
}

func (d *Clock) Start() {
	logrus.Infof("Start clock device")
	d.lock.Lock()
	defer d.lock.Unlock()

	var err error
	d.scheduler, err = gocron.NewScheduler()
	if err != nil {
		logrus.Fatalf("Unable to create clock scheduler: %v", err)
	}

	_, err = d.scheduler.NewJob(
		gocron.CronJob("* * * * *", false),
		gocron.NewTask(d.send, event.PlatformEvent{Data: event.TimeTickData{}}, d.askDone),
		gocron.WithName("time-tick"),
	)
	if err != nil {
		logrus.Fatalf("Unable to schedule time tick: %v", err)
	}
	d.scheduler.Start()
}

func (d *Clock) StopSendingEvent() {
	logrus.Infof("Stop clock device")

	// unblock a pending tick before waiting for the scheduler
	close(d.askDone)
	d.UnwatchTimezone()

	d.lock.Lock()
	defer d.lock.Unlock()
	if d.scheduler != nil {
		if err := d.scheduler.Shutdown(); err != nil {
			logrus.Warnf("Unable to stop clock scheduler: %v", err)
		}
	}
}

func (d *Clock) EventChannel() chan event.PlatformEvent {
	return d.eventChannel
}

func (d *Clock) send(ev event.PlatformEvent, stop chan bool) {
	select {
	case d.eventChannel <- ev:
	case <-stop:
	}
}

// WatchTimezone starts watching the system time zone, calling it again does nothing
func (d *Clock) WatchTimezone() error {
	d.lock.Lock()
	defer d.lock.Unlock()

	if d.watcher != nil {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("unable to create time zone watcher: %w", err)
	}
	// the link itself gets replaced, watch its directory
	if err := watcher.Add(filepath.Dir(d.localtimePath)); err != nil {
		watcher.Close()
		return fmt.Errorf("unable to watch %s: %w", d.localtimePath, err)
	}

	logrus.Debugf("Watch time zone changes on %s", d.localtimePath)
	d.watcher = watcher
	d.watchStop = make(chan bool)
	d.watchDone = make(chan bool)
	go d.watchLoop(watcher, d.watchStop, d.watchDone)
	return nil
}

func (d *Clock) UnwatchTimezone() {
	d.lock.Lock()
	defer d.lock.Unlock()

	if d.watcher == nil {
		return
	}

	logrus.Debugf("Stop watching time zone changes")
	close(d.watchStop)
	if err := d.watcher.Close(); err != nil {
		logrus.Warnf("Unable to close time zone watcher: %v", err)
	}
	<-d.watchDone
	d.watcher = nil
}

func (d *Clock) watchLoop(watcher *fsnotify.Watcher, stop chan bool, done chan bool) {
	defer close(done)

	name := filepath.Base(d.localtimePath)
	for {
		select {
		case <-stop:
			return
		case ev, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(ev.Name) != name || !ev.Op.Has(fsnotify.Create) && !ev.Op.Has(fsnotify.Write) {
				continue
			}
			tzId := SystemTimezone(d.localtimePath)
			logrus.Debugf("System time zone changed: %q", tzId)
			select {
			case d.eventChannel <- event.PlatformEvent{Data: event.TimezoneData{TzId: tzId}}:
			case <-stop:
				return
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			logrus.Warnf("Time zone watcher error: %v", err)
		}
	}
}

// SystemTimezone returns the zone name the localtime link points to, "" when unknown
func SystemTimezone(localtimePath string) string {
	target, err := os.Readlink(localtimePath)
	if err != nil {
		return ""
	}
	return timezoneFromLink(target)
}

func timezoneFromLink(target string) string {
	const marker = "zoneinfo/"
	idx := strings.LastIndex(target, marker)
	if idx < 0 {
		return ""
	}
	return target[idx+len(marker):]
}
