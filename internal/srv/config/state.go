package config

import (
	"os"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

const saveDelay = 10 * time.Second

type ServerState struct {
	serverStateConfig     ServerStateConfig
	lock                  sync.RWMutex
	backupTimer           *time.Timer
	completeStateFilename string
}

func NewServerState(completeStateFilename string) *ServerState {
	serverState := &ServerState{
		completeStateFilename: completeStateFilename,
	}

	rawConfig, err := os.ReadFile(completeStateFilename)
	if err == nil {
		// Interpret state file
		err = yaml.Unmarshal(rawConfig, &serverState.serverStateConfig)
		if err != nil {
			logrus.Fatalf("Unable to interpret state file: %v\n", err)
		}
	} else {
		// Create default state file
		logrus.Infof("Create default state file")
		serverState.SetInvertedBackground(false)
	}

	return serverState
}

func (ss *ServerState) InvertedBackground() bool {
	ss.lock.RLock()
	defer ss.lock.RUnlock()

	return ss.serverStateConfig.InvertedBackground
}

func (ss *ServerState) SetInvertedBackground(inverted bool) {
	ss.lock.Lock()
	defer ss.lock.Unlock()

	ss.serverStateConfig.InvertedBackground = inverted
	ss.scheduleSave()
}

// ToggleBackground flips the interactive background and returns the new value
func (ss *ServerState) ToggleBackground() bool {
	ss.lock.Lock()
	defer ss.lock.Unlock()

	ss.serverStateConfig.InvertedBackground = !ss.serverStateConfig.InvertedBackground
	ss.serverStateConfig.TapCount++
	ss.scheduleSave()
	return ss.serverStateConfig.InvertedBackground
}

func (ss *ServerState) TapCount() int64 {
	ss.lock.RLock()
	defer ss.lock.RUnlock()

	return ss.serverStateConfig.TapCount
}

func (ss *ServerState) scheduleSave() {
	if ss.backupTimer == nil {
		ss.backupTimer = time.AfterFunc(saveDelay, func() {
			ss.lock.Lock()
			defer ss.lock.Unlock()
			ss.save()
		})
	} else {
		ss.backupTimer.Reset(saveDelay)
	}
}

func (ss *ServerState) save() {
	logrus.Infof("Save state file: %s", ss.completeStateFilename)
	rawConfig, err := yaml.Marshal(&ss.serverStateConfig)
	if err != nil {
		logrus.Errorf("Unable to serialize state file: %v", err)
		return
	}
	err = os.WriteFile(ss.completeStateFilename, rawConfig, 0660)
	if err != nil {
		logrus.Errorf("Unable to save state file: %v", err)
	}
}

func (ss *ServerState) FlushSave() {
	ss.lock.Lock()
	defer ss.lock.Unlock()
	if ss.backupTimer != nil {
		if ss.backupTimer.Stop() {
			ss.save()
		}
	}
}

type ServerStateConfig struct {
	InvertedBackground bool  `yaml:"inverted_background"`
	TapCount           int64 `yaml:"tap_count"`
}
