package webhook

// PushEvent is the only event type that warrants a deploy.
const PushEvent = "push"

// Classification is the verdict on whether an inbound event should
// trigger the deploy procedure.
type Classification int

const (
	// Ignore means acknowledge the delivery without acting on it.
	Ignore Classification = iota

	// Deploy means the event warrants running the deploy procedure.
	Deploy
)

func (c Classification) String() string {
	if c == Deploy {
		return "deploy"
	}
	return "ignore"
}

// Classify maps a declared event type to a deploy decision. The match
// is exact and case-sensitive: "push" deploys; everything else,
// including an absent event type, is ignored.
func Classify(eventType string) Classification {
	if eventType == PushEvent {
		return Deploy
	}
	return Ignore
}
