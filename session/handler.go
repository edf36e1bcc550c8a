package session

// A HandlerGroup is a group of event handler chains which can be installed
// in a Session.
//
// The zero value is an empty group. Groups must not be modified while
// sessions using them are running.
type HandlerGroup struct {
	handlers [][]Handler
}

// PushBack adds h to the back of the chain for evt.
func (g *HandlerGroup) PushBack(evt Event, h Handler) {
	if h == nil {
		panic("session: nil handler")
	}

	if g.handlers == nil {
		g.handlers = make([][]Handler, numEvents)
	}

	g.handlers[evt] = append(g.handlers[evt], h)
}

func (g *HandlerGroup) run(evt Event, info *Info) {
	if g == nil {
		return
	}

	i := int(evt)
	if i < len(g.handlers) {
		for _, h := range g.handlers[i] {
			h.Handle(evt, info)
		}
	}
}

type Handler interface {
	Handle(Event, *Info)
}

type HandlerFunc func(Event, *Info)

func (f HandlerFunc) Handle(evt Event, info *Info) {
	f(evt, info)
}
