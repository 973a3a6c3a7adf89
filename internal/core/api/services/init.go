package services

import (
	"github.com/enjoys-in/airsend-calc/internal/core/connector"
	"github.com/enjoys-in/airsend-calc/internal/core/persist"
	"github.com/enjoys-in/airsend-calc/internal/core/session"
	"github.com/enjoys-in/airsend-calc/internal/interfaces"
)

func NewServices(sessions *session.Registry, conns *connector.Registry, store *persist.Store) *interfaces.Services {
	return &interfaces.Services{
		Sessions: NewSessionService(sessions, conns, store),
	}
}
