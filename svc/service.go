package svc

import (
	"go.uber.org/zap"
)

type Service interface {
	Start() error // bootstrapping error only
	Stop()
	// Done - shutdown error channel
	// Since consumed by Group only, Do Not Close the channel in a method
	Done() <-chan error
	Name() string
}

// Group starts, stops and waits on a set of services in registration order
type Group struct {
	Log *zap.Logger

	services []Service
	done     chan error
}

func (g *Group) logger() *zap.Logger {
	if g.Log == nil {
		return zap.NewNop()
	}
	return g.Log
}

func (g *Group) Add(s Service) {
	g.services = append(g.services, s)
	g.logger().Info("service added", zap.String("service", s.Name()), zap.Int("total", len(g.services)))
}

func (g *Group) Len() int { return len(g.services) }

func (g *Group) Start() error {
	g.done = make(chan error, len(g.services))
	for _, s := range g.services {
		if err := s.Start(); err != nil {
			return err
		}
		go func(s Service) {
			g.done <- <-s.Done()
		}(s)
	}
	return nil
}

// Wait blocks until every started service reported done, returning the
// first non-nil error.
func (g *Group) Wait() error {
	var first error
	for range g.services {
		if err := <-g.done; err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (g *Group) Stop() {
	for _, s := range g.services {
		g.logger().Debug("stopping service", zap.String("service", s.Name()))
		s.Stop()
	}
}
