package events

const (
	// TypeSwapStarted is emitted when a multi-hop swap operation begins.
	TypeSwapStarted = "swap.started"
	// TypeSwapHopSettled is emitted each time a hop's atomic order settles.
	TypeSwapHopSettled = "swap.hop_settled"
	// TypeSwapCompleted is emitted when the final hop settles and proceeds
	// are transferred to the sender.
	TypeSwapCompleted = "swap.completed"
)

// SwapStarted records the start of a routed swap.
type SwapStarted struct {
	Sender      string
	SourceDenom string
	TargetDenom string
	Quantity    string
	Steps       []string
}

// EventType implements the Event interface.
func (SwapStarted) EventType() string { return TypeSwapStarted }

// SwapHopSettled records the settlement of one hop of an in-flight swap.
type SwapHopSettled struct {
	StepIdx  uint32
	MarketID string
	IsBuy    bool
	Balance  string
	Denom    string
}

// EventType implements the Event interface.
func (SwapHopSettled) EventType() string { return TypeSwapHopSettled }

// SwapCompleted records the final proceeds of a completed swap.
type SwapCompleted struct {
	Sender      string
	TargetDenom string
	Quantity    string
}

// EventType implements the Event interface.
func (SwapCompleted) EventType() string { return TypeSwapCompleted }
