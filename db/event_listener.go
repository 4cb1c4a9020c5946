package db

// EventListener is notified of database IO. Implementations must be safe for
// concurrent use.
type EventListener interface {
	OnIO(write bool)
	OnCommit()
}

// SelectiveListener implements EventListener with optional callbacks.
type SelectiveListener struct {
	OnIOCb     func(write bool)
	OnCommitCb func()
}

func (l *SelectiveListener) OnIO(write bool) {
	if l.OnIOCb != nil {
		l.OnIOCb(write)
	}
}

func (l *SelectiveListener) OnCommit() {
	if l.OnCommitCb != nil {
		l.OnCommitCb()
	}
}
