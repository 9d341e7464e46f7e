package apimodel

import "time"

type WeatherStatus struct {
	Synced     bool       `json:"synced"`
	High       string     `json:"high,omitempty"`
	Low        string     `json:"low,omitempty"`
	Time       string     `json:"time,omitempty"`
	IconState  string     `json:"icon_state,omitempty"`
	Seq        uint64     `json:"seq,omitempty"`
	ReceivedAt *time.Time `json:"received_at,omitempty"`
	Connection string     `json:"connection"`
}

type SchedulerStatus struct {
	Running             bool   `json:"running"`
	NextDeadlineEpochMs int64  `json:"next_deadline_epoch_ms,omitempty"`
	Resyncs             uint64 `json:"resyncs"`
}

type DisplayStatus struct {
	State              string          `json:"state"`
	Mode               string          `json:"mode"`
	Visible            bool            `json:"visible"`
	AntiAlias          bool            `json:"anti_alias"`
	LowBitAmbient      bool            `json:"low_bit_ambient"`
	InvertedBackground bool            `json:"inverted_background"`
	Timezone           string          `json:"timezone"`
	Scheduler          SchedulerStatus `json:"scheduler"`
}
