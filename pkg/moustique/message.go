package moustique

// Message is a pending message delivered by PICKUP.
type Message struct {
	Topic               string `json:"topic"`
	Message             string `json:"message"`
	From                string `json:"from"`
	UpdatedTime         int64  `json:"updated_time,omitempty"`
	UpdatedNiceDatetime string `json:"updated_nicedatetime,omitempty"`
}

// Value is a named value stored on the broker by PUTVAL.
type Value struct {
	Message             string `json:"message"`
	UpdatedTime         int64  `json:"updated_time"`
	UpdatedNiceDatetime string `json:"updated_nicedatetime"`
	From                string `json:"from"`
}
