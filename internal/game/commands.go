package game

// Commands are the only way session state changes. They are consumed one at a
// time, in arrival order, by the session goroutine; timer expiry enters the
// same queue so races between a late answer and a deadline are resolved by
// queue order alone.

type command interface{ isCommand() }

type joinCmd struct {
	name      string
	playerID  string // non-empty means reconnect attempt
	hostToken string
	reply     chan joinReply
}

type joinReply struct {
	playerID    string
	sub         *Subscriber
	reconnected bool
	err         error
}

type startCmd struct {
	playerID string
	reply    chan error
}

type answerCmd struct {
	playerID string
	index    int
	chosen   []int
	reply    chan error
}

type skipCmd struct {
	playerID string
	reply    chan error
}

type endCmd struct {
	playerID string
	reply    chan error
}

type disconnectCmd struct {
	playerID string
}

type timerPurpose int

const (
	timerDeadline timerPurpose = iota // answering window expired
	timerAdvance                      // reveal pause elapsed
	timerGrace                        // host reconnect window expired
)

type timerCmd struct {
	purpose timerPurpose
	gen     uint64
}

func (joinCmd) isCommand()       {}
func (startCmd) isCommand()      {}
func (answerCmd) isCommand()     {}
func (skipCmd) isCommand()       {}
func (endCmd) isCommand()        {}
func (disconnectCmd) isCommand() {}
func (timerCmd) isCommand()      {}
