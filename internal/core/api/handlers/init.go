package handlers

import (
	"github.com/enjoys-in/airsend-calc/internal/interfaces"
)

type Handlers struct {
	SessionHandler *SessionHandler
}

func NewHandlers(svc *interfaces.Services) *Handlers {
	return &Handlers{
		SessionHandler: NewSessionHandler(svc.Sessions),
	}
}
