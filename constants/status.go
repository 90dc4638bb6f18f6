package constants

// OrderState is the stage an inbound photo has reached in the order pipeline.
type OrderState string

// Stable values; they appear in logs.
const (
	StateAwaitingImage OrderState = "AWAITING_IMAGE"
	StateDownloading   OrderState = "DOWNLOADING"
	StateRecognizing   OrderState = "RECOGNIZING"
	StateExtracting    OrderState = "EXTRACTING"
	StateSynthesizing  OrderState = "SYNTHESIZING"
	StateAppending     OrderState = "APPENDING"
	StateDone          OrderState = "DONE"
	StateFailed        OrderState = "FAILED" // terminal failure
)

// Terminal reports whether no further transition is possible.
func (s OrderState) Terminal() bool {
	return s == StateDone || s == StateFailed
}
