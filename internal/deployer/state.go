package deployer

import "fmt"

// State is a step of a single deployment.
type State int

const (
	StateAddressDerived State = iota
	StateFunding
	StateWaitingForFunds
	StateReady
	StateDeployed
	StateFailed
)

var stateNames = [...]string{
	StateAddressDerived:  "AddressDerived",
	StateFunding:         "Funding",
	StateWaitingForFunds: "WaitingForFunds",
	StateReady:           "Ready",
	StateDeployed:        "Deployed",
	StateFailed:          "Failed",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", int(s))
}
