package event

// Platform events consumed by the display mode state machine
type PlatformEvent struct {
	Data interface{}
}

type VisibilityData struct {
	Visible bool
}

type AmbientModeData struct {
	Ambient bool
}

type TimeTickData struct{}

type TimezoneData struct {
	TzId string
}

type PropertiesData struct {
	LowBitAmbient bool
}

type TapData struct{}

// Internal
type InternalEvent struct {
	Data interface{}
}

// InternalEventAmbientTimeoutData is stale once the timer that sent it was reset
type InternalEventAmbientTimeoutData struct {
	Generation uint64
}

// Buttons
type ButtonId int

const (
	SCREEN_BUTTON ButtonId = iota
	AMBIENT_BUTTON
	TAP_BUTTON
)

type ButtonEventType int

const (
	PRESS_EVENT_TYPE ButtonEventType = iota
	RELEASE_EVENT_TYPE
)

type ButtonEvent struct {
	ButtonId        ButtonId
	ButtonEventType ButtonEventType
	PressStepCount  int64
}

// Api
type ApiEvent struct {
	Result chan error
	Data   interface{}
}

type ApiEventPlatformData struct {
	Event PlatformEvent
}
