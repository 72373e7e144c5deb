package entities

// Band is an inclusive [min, max] threshold for one channel.
type Band struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// AlertThresholds maps channel name -> band. One active configuration per
// user, last write wins. Channels absent from the map are never evaluated.
type AlertThresholds map[string]Band
