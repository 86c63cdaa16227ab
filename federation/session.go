package federation

import "fmt"

// Session holds the handles allocated for one joined federate.
// It is owned by the bridge goroutine and is not safe for concurrent use.
type Session struct {
	federate  FederateHandle
	instances map[string]ObjectInstanceHandle
	valid     bool
}

// NewSession starts a session for a joined federate.
func NewSession(federate FederateHandle) *Session {
	return &Session{
		federate:  federate,
		instances: make(map[string]ObjectInstanceHandle),
		valid:     true,
	}
}

func (s *Session) mustBeValid(op string) {
	if s == nil || !s.valid {
		panic(fmt.Sprintf("federation: %s on invalidated session", op))
	}
}

// Valid reports whether the session handles may still be used.
func (s *Session) Valid() bool {
	return s != nil && s.valid
}

// Federate returns the federate handle.
func (s *Session) Federate() FederateHandle {
	s.mustBeValid("Federate")
	return s.federate
}

// Bind records the handle registered for a local entity.
func (s *Session) Bind(entity string, handle ObjectInstanceHandle) {
	s.mustBeValid("Bind")
	s.instances[entity] = handle
}

// Instance returns the handle registered for a local entity.
func (s *Session) Instance(entity string) (ObjectInstanceHandle, bool) {
	s.mustBeValid("Instance")
	h, ok := s.instances[entity]
	return h, ok
}

// Instances returns the number of registered instances.
func (s *Session) Instances() int {
	s.mustBeValid("Instances")
	return len(s.instances)
}

// Invalidate drops all handles. Further handle reads panic.
func (s *Session) Invalidate() {
	if s == nil {
		return
	}
	s.valid = false
	s.instances = nil
}
